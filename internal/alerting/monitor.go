package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceMonitor tracks the last alert-worthy price of one item. CurrentPrice
// is deliberately only advanced when a check crosses the threshold, so
// sub-threshold drifts accumulate toward the next crossing instead of
// resetting the baseline on every check.
type PriceMonitor struct {
	ItemID       string
	ItemType     string
	CurrentPrice decimal.Decimal
	Currency     string
	ThresholdPct decimal.Decimal
	CreatedAt    time.Time
	LastChecked  time.Time
}

// FlightMonitor tracks the last observed status of one flight.
type FlightMonitor struct {
	FlightID           string
	FlightNumber       string
	Airline            string
	ScheduledDeparture time.Time
	ScheduledArrival   time.Time
	Status             string
	DelayMinutes       int
	CreatedAt          time.Time
	LastChecked        time.Time
}

// WeatherMonitor tracks the last observed forecast for one destination.
type WeatherMonitor struct {
	Destination   string
	Temperature   decimal.Decimal
	Condition     string
	ForecastDate  time.Time
	TempThreshold decimal.Decimal
	CreatedAt     time.Time
	LastChecked   time.Time
}

// Flight status values the monitor reacts to.
const (
	FlightStatusDelayed   = "delayed"
	FlightStatusCancelled = "cancelled"
)
