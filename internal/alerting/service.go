package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Callback receives every emitted alert synchronously. A panicking callback
// is recovered and logged; it never breaks emission for other callbacks or
// for the caller.
type Callback func(Alert)

// Options tune service defaults. Zero values fall back to the documented
// defaults.
type Options struct {
	// PriceThresholdPct applies to price monitors registered without an
	// explicit threshold. Default 5.0.
	PriceThresholdPct decimal.Decimal
	// TempChangeThreshold applies to weather monitors registered without an
	// explicit threshold, in degrees. Default 10.0.
	TempChangeThreshold decimal.Decimal
	// Now stamps created/triggered times; defaults to time.Now. One instance
	// always uses the same clock so its timestamps stay comparable.
	Now func() time.Time
}

var (
	defaultPriceThreshold = decimal.NewFromFloat(5.0)
	defaultTempThreshold  = decimal.NewFromFloat(10.0)
	highChangePct         = decimal.NewFromInt(10)
	highTempChange        = decimal.NewFromInt(15)
	pctFactor             = decimal.NewFromInt(100)
)

const (
	delayAlertMinutes    = 15
	criticalDelayMinutes = 60
	reminderUrgentWithin = 72 * time.Hour
)

// Service is a stateful monitor registry that ingests price, flight-status
// and weather updates and emits classified alerts. It exclusively owns its
// monitors and alert log; callers only ever hold identifiers and returned
// copies. A per-instance mutex keeps monitor mutation and alert emission
// atomic for concurrent callers.
type Service struct {
	mu        sync.Mutex
	prices    map[string]*PriceMonitor
	flights   map[string]*FlightMonitor
	weather   map[string]*WeatherMonitor
	alerts    []Alert
	callbacks []Callback
	seq       int

	opts   Options
	logger zerolog.Logger
}

// NewService constructs an empty registry.
func NewService(opts Options, logger zerolog.Logger) *Service {
	if opts.PriceThresholdPct.IsZero() {
		opts.PriceThresholdPct = defaultPriceThreshold
	}
	if opts.TempChangeThreshold.IsZero() {
		opts.TempChangeThreshold = defaultTempThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		prices:  make(map[string]*PriceMonitor),
		flights: make(map[string]*FlightMonitor),
		weather: make(map[string]*WeatherMonitor),
		opts:    opts,
		logger:  logger.With().Str("component", "alerts").Logger(),
	}
}

// RegisterCallback adds a synchronous observer for every future alert.
func (s *Service) RegisterCallback(fn Callback) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// TrackPrice registers a price monitor. A non-positive threshold falls back
// to the service default.
func (s *Service) TrackPrice(itemID, itemType string, price decimal.Decimal, currency string, thresholdPct decimal.Decimal) {
	if !thresholdPct.IsPositive() {
		thresholdPct = s.opts.PriceThresholdPct
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	s.prices[itemID] = &PriceMonitor{
		ItemID:       itemID,
		ItemType:     itemType,
		CurrentPrice: price,
		Currency:     currency,
		ThresholdPct: thresholdPct,
		CreatedAt:    now,
		LastChecked:  now,
	}
}

// TrackFlight registers a flight status monitor.
func (s *Service) TrackFlight(flightID, flightNumber string, departure, arrival time.Time, airline string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	s.flights[flightID] = &FlightMonitor{
		FlightID:           flightID,
		FlightNumber:       flightNumber,
		Airline:            airline,
		ScheduledDeparture: departure,
		ScheduledArrival:   arrival,
		Status:             "scheduled",
		CreatedAt:          now,
		LastChecked:        now,
	}
}

// TrackWeather registers a weather monitor for a destination.
func (s *Service) TrackWeather(destination string, temperature decimal.Decimal, condition string, forecastDate time.Time, tempThreshold decimal.Decimal) {
	if !tempThreshold.IsPositive() {
		tempThreshold = s.opts.TempChangeThreshold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	s.weather[destination] = &WeatherMonitor{
		Destination:   destination,
		Temperature:   temperature,
		Condition:     condition,
		ForecastDate:  forecastDate,
		TempThreshold: tempThreshold,
		CreatedAt:     now,
		LastChecked:   now,
	}
}

// CheckPriceUpdate compares a new price against the monitor baseline and
// emits an alert when the change magnitude reaches the threshold. Only an
// alert-emitting update advances the baseline; smaller moves update
// LastChecked and nothing else. Unknown ids are a silent no-op.
func (s *Service) CheckPriceUpdate(itemID string, newPrice decimal.Decimal) *Alert {
	s.mu.Lock()
	monitor, ok := s.prices[itemID]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	now := s.opts.Now()
	monitor.LastChecked = now

	if !monitor.CurrentPrice.IsPositive() {
		// No usable baseline; adopt the observed price and stay silent.
		monitor.CurrentPrice = newPrice
		s.mu.Unlock()
		return nil
	}

	changePct := newPrice.Sub(monitor.CurrentPrice).Div(monitor.CurrentPrice).Mul(pctFactor)
	if changePct.Abs().LessThan(monitor.ThresholdPct) {
		s.mu.Unlock()
		return nil
	}

	oldPrice := monitor.CurrentPrice
	monitor.CurrentPrice = newPrice

	alertType := AlertPriceIncrease
	title := fmt.Sprintf("Price increase: %s", itemID)
	if newPrice.LessThan(oldPrice) {
		alertType = AlertPriceDrop
		title = fmt.Sprintf("Price drop: %s", itemID)
	}
	severity := SeverityMedium
	if changePct.Abs().GreaterThan(highChangePct) {
		severity = SeverityHigh
	}

	metadata := map[string]any{
		"item_id":    itemID,
		"item_type":  monitor.ItemType,
		"old_price":  oldPrice,
		"new_price":  newPrice,
		"change_pct": changePct,
		"currency":   monitor.Currency,
	}
	if alertType == AlertPriceDrop {
		metadata["savings"] = oldPrice.Sub(newPrice)
	}

	alert := s.appendLocked(alertType, severity, title,
		fmt.Sprintf("%s %s moved %s%% (%s -> %s %s)",
			monitor.ItemType, itemID, changePct.StringFixed(1),
			oldPrice.StringFixed(2), newPrice.StringFixed(2), monitor.Currency),
		now, metadata)
	callbacks := append([]Callback(nil), s.callbacks...)
	s.mu.Unlock()

	s.dispatch(alert, callbacks)
	return &alert
}

// CheckFlightStatus records the latest status and delay for a flight and
// emits an alert for material delays (over 15 minutes) or cancellations.
// Everything else updates state silently.
func (s *Service) CheckFlightStatus(flightID, status string, delayMinutes int) *Alert {
	s.mu.Lock()
	monitor, ok := s.flights[flightID]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	now := s.opts.Now()
	monitor.Status = status
	monitor.DelayMinutes = delayMinutes
	monitor.LastChecked = now

	var (
		severity Severity
		title    string
		message  string
		emit     bool
	)
	switch {
	case status == FlightStatusCancelled:
		emit = true
		severity = SeverityCritical
		title = fmt.Sprintf("Flight cancelled: %s", monitor.FlightNumber)
		message = fmt.Sprintf("%s flight %s has been cancelled", monitor.Airline, monitor.FlightNumber)
	case status == FlightStatusDelayed && delayMinutes > delayAlertMinutes:
		emit = true
		severity = SeverityHigh
		if delayMinutes > criticalDelayMinutes {
			severity = SeverityCritical
		}
		title = fmt.Sprintf("Flight delayed: %s", monitor.FlightNumber)
		message = fmt.Sprintf("%s flight %s delayed by %d minutes", monitor.Airline, monitor.FlightNumber, delayMinutes)
	}
	if !emit {
		s.mu.Unlock()
		return nil
	}

	alert := s.appendLocked(AlertFlightDelay, severity, title, message, now, map[string]any{
		"flight_id":     flightID,
		"flight_number": monitor.FlightNumber,
		"airline":       monitor.Airline,
		"status":        status,
		"delay_minutes": delayMinutes,
	})
	callbacks := append([]Callback(nil), s.callbacks...)
	s.mu.Unlock()

	s.dispatch(alert, callbacks)
	return &alert
}

// CheckWeatherUpdate compares the new forecast against the stored one and
// emits an alert on a temperature swing at or above the threshold or on any
// condition change. Stored state always advances, alert or not.
func (s *Service) CheckWeatherUpdate(destination string, newTemp decimal.Decimal, newCondition string) *Alert {
	s.mu.Lock()
	monitor, ok := s.weather[destination]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	now := s.opts.Now()
	oldTemp := monitor.Temperature
	oldCondition := monitor.Condition
	tempChange := newTemp.Sub(oldTemp).Abs()
	conditionChanged := newCondition != oldCondition

	monitor.Temperature = newTemp
	monitor.Condition = newCondition
	monitor.LastChecked = now

	if tempChange.LessThan(monitor.TempThreshold) && !conditionChanged {
		s.mu.Unlock()
		return nil
	}

	severity := SeverityMedium
	if tempChange.GreaterThan(highTempChange) {
		severity = SeverityHigh
	}

	alert := s.appendLocked(AlertWeatherChange, severity,
		fmt.Sprintf("Weather change: %s", destination),
		fmt.Sprintf("%s forecast moved from %s° %s to %s° %s",
			destination, oldTemp.StringFixed(1), oldCondition, newTemp.StringFixed(1), newCondition),
		now, map[string]any{
			"destination":   destination,
			"old_temp":      oldTemp,
			"new_temp":      newTemp,
			"old_condition": oldCondition,
			"new_condition": newCondition,
			"temp_change":   tempChange,
		})
	callbacks := append([]Callback(nil), s.callbacks...)
	s.mu.Unlock()

	s.dispatch(alert, callbacks)
	return &alert
}

// CreateBookingReminder emits a reminder alert on demand; it is the one alert
// type with no prior monitor state. Deadlines within three days are high
// severity.
func (s *Service) CreateBookingReminder(itemType, itemName string, deadline time.Time) Alert {
	s.mu.Lock()
	now := s.opts.Now()
	severity := SeverityMedium
	if deadline.Sub(now) <= reminderUrgentWithin {
		severity = SeverityHigh
	}

	alert := s.appendLocked(AlertBookingReminder, severity,
		fmt.Sprintf("Booking reminder: %s", itemName),
		fmt.Sprintf("Book %s %q before %s", itemType, itemName, deadline.Format(time.DateOnly)),
		now, map[string]any{
			"item_type": itemType,
			"item_name": itemName,
			"deadline":  deadline.Format(time.RFC3339),
		})
	callbacks := append([]Callback(nil), s.callbacks...)
	s.mu.Unlock()

	s.dispatch(alert, callbacks)
	return alert
}

// UnreadAlerts returns copies of alerts not yet marked read, oldest first.
func (s *Service) UnreadAlerts() []Alert {
	return s.filter(func(a Alert) bool { return !a.Read })
}

// AlertsByType returns copies of alerts of one type, oldest first.
func (s *Service) AlertsByType(t AlertType) []Alert {
	return s.filter(func(a Alert) bool { return a.Type == t })
}

// AlertsBySeverity returns copies of alerts of one severity, oldest first.
func (s *Service) AlertsBySeverity(sev Severity) []Alert {
	return s.filter(func(a Alert) bool { return a.Severity == sev })
}

// AlertsSince returns copies of alerts created at or after ts.
func (s *Service) AlertsSince(ts time.Time) []Alert {
	return s.filter(func(a Alert) bool { return !a.CreatedAt.Before(ts) })
}

// MarkRead flags one alert as read. Returns false for unknown ids.
func (s *Service) MarkRead(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every alert as read and reports how many flipped.
func (s *Service) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := 0
	for i := range s.alerts {
		if !s.alerts[i].Read {
			s.alerts[i].Read = true
			flipped++
		}
	}
	return flipped
}

// ClearOldAlerts removes alerts created more than days ago, keyed on creation
// time only; read state does not shield an alert from pruning.
func (s *Service) ClearOldAlerts(days int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.opts.Now().AddDate(0, 0, -days)
	kept := s.alerts[:0]
	removed := 0
	for _, a := range s.alerts {
		if a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.alerts = kept
	return removed
}

// ExportAlerts snapshots the full alert log, newest first. The returned
// records are copies in the engine's committed serializable form.
func (s *Service) ExportAlerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[len(s.alerts)-1-i] = cloneAlert(a)
	}
	return out
}

// Summary counts alerts by type and severity plus registered monitors.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := Summary{
		Total:           len(s.alerts),
		ByType:          make(map[AlertType]int),
		BySeverity:      make(map[Severity]int),
		PriceMonitors:   len(s.prices),
		FlightMonitors:  len(s.flights),
		WeatherMonitors: len(s.weather),
	}
	for _, a := range s.alerts {
		summary.ByType[a.Type]++
		summary.BySeverity[a.Severity]++
		if !a.Read {
			summary.Unread++
		}
	}
	return summary
}

// PriceMonitorSnapshot returns a copy of one price monitor's state.
func (s *Service) PriceMonitorSnapshot(itemID string) (PriceMonitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	monitor, ok := s.prices[itemID]
	if !ok {
		return PriceMonitor{}, false
	}
	return *monitor, true
}

func (s *Service) appendLocked(t AlertType, sev Severity, title, message string, now time.Time, metadata map[string]any) Alert {
	s.seq++
	alert := Alert{
		ID:          fmt.Sprintf("alert-%06d", s.seq),
		Type:        t,
		Severity:    sev,
		Title:       title,
		Message:     message,
		CreatedAt:   now,
		TriggeredAt: now,
		Metadata:    metadata,
	}
	s.alerts = append(s.alerts, alert)
	return cloneAlert(alert)
}

func (s *Service) dispatch(alert Alert, callbacks []Callback) {
	for _, cb := range callbacks {
		s.invoke(cb, alert)
	}
}

// invoke shields emission from a misbehaving observer.
func (s *Service) invoke(cb Callback, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("alert_id", alert.ID).
				Msg("alert callback panicked; notification skipped")
		}
	}()
	cb(alert)
}

func (s *Service) filter(keep func(Alert) bool) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, 0)
	for _, a := range s.alerts {
		if keep(a) {
			out = append(out, cloneAlert(a))
		}
	}
	return out
}

func cloneAlert(a Alert) Alert {
	if a.Metadata != nil {
		meta := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			meta[k] = v
		}
		a.Metadata = meta
	}
	return a
}
