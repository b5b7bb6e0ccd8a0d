package alerting

import (
	"time"
)

// AlertType classifies what kind of change triggered an alert.
type AlertType string

const (
	AlertPriceDrop       AlertType = "price_drop"
	AlertPriceIncrease   AlertType = "price_increase"
	AlertFlightDelay     AlertType = "flight_delay"
	AlertWeatherChange   AlertType = "weather_change"
	AlertBookingReminder AlertType = "booking_reminder"
)

// Severity grades how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is an immutable record of one detected change. Read is the only
// field that mutates after creation, toggled through the service. The JSON
// form (RFC3339 timestamps, enums as strings) is the engine's one committed
// external representation.
type Alert struct {
	ID          string         `json:"alert_id"`
	Type        AlertType      `json:"alert_type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Read        bool           `json:"is_read"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Summary aggregates the alert log and monitor registry for one service
// instance.
type Summary struct {
	Total           int               `json:"total"`
	Unread          int               `json:"unread"`
	ByType          map[AlertType]int `json:"by_type"`
	BySeverity      map[Severity]int  `json:"by_severity"`
	PriceMonitors   int               `json:"price_monitors"`
	FlightMonitors  int               `json:"flight_monitors"`
	WeatherMonitors int               `json:"weather_monitors"`
}
