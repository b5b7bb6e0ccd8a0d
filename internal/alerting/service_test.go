package alerting

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService() (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Options{Now: clock.Now}, zerolog.Nop())
	return svc, clock
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestPriceThresholdBoundary(t *testing.T) {
	svc, _ := newTestService()
	svc.TrackPrice("item_1", "flight", dec(1000), "USD", dec(5))

	if alert := svc.CheckPriceUpdate("item_1", dec(1049)); alert != nil {
		t.Fatalf("4.9%% 变动不应触发告警: %+v", alert)
	}
	alert := svc.CheckPriceUpdate("item_1", dec(1051))
	if alert == nil {
		t.Fatal("5.1% change must emit exactly one alert")
	}
	if alert.Type != AlertPriceIncrease {
		t.Fatalf("type = %s", alert.Type)
	}
	if alert.Severity != SeverityMedium {
		t.Fatalf("5.1%% change severity = %s, want medium", alert.Severity)
	}
	if got := len(svc.ExportAlerts()); got != 1 {
		t.Fatalf("alert count = %d, want 1", got)
	}
}

func TestPriceSeverityBoundary(t *testing.T) {
	svc, _ := newTestService()
	svc.TrackPrice("exact", "hotel", dec(1000), "USD", dec(5))
	svc.TrackPrice("above", "hotel", dec(1000), "USD", dec(5))

	atTen := svc.CheckPriceUpdate("exact", dec(1100))
	if atTen == nil || atTen.Severity != SeverityMedium {
		t.Fatalf("恰好 10%% 应为 medium: %+v", atTen)
	}
	aboveTen := svc.CheckPriceUpdate("above", dec(1101))
	if aboveTen == nil || aboveTen.Severity != SeverityHigh {
		t.Fatalf("10.1%% should be high: %+v", aboveTen)
	}
}

// Sub-threshold checks must not advance the comparison baseline, so small
// drifts accumulate toward the next crossing.
func TestPriceBaselineOnlyAdvancesOnAlert(t *testing.T) {
	svc, _ := newTestService()
	svc.TrackPrice("item_1", "flight", dec(500), "USD", dec(5))

	if alert := svc.CheckPriceUpdate("item_1", dec(510)); alert != nil {
		t.Fatal("2% move should stay silent")
	}
	if alert := svc.CheckPriceUpdate("item_1", dec(520)); alert != nil {
		t.Fatal("4% cumulative move should still stay silent")
	}
	// 527 is 5.4% above the original 500 baseline.
	alert := svc.CheckPriceUpdate("item_1", dec(527))
	if alert == nil {
		t.Fatal("drift past the threshold must alert against the original baseline")
	}

	snapshot, ok := svc.PriceMonitorSnapshot("item_1")
	if !ok || !snapshot.CurrentPrice.Equal(dec(527)) {
		t.Fatalf("baseline should advance on alert: %+v", snapshot)
	}
}

func TestPriceDropScenario(t *testing.T) {
	svc, _ := newTestService()
	svc.TrackPrice("item_1", "flight", dec(500), "USD", dec(5))

	alert := svc.CheckPriceUpdate("item_1", dec(450))
	if alert == nil {
		t.Fatal("10% drop must alert")
	}
	if alert.Type != AlertPriceDrop {
		t.Fatalf("type = %s, want price_drop", alert.Type)
	}
	savings, ok := alert.Metadata["savings"].(decimal.Decimal)
	if !ok || !savings.Equal(dec(50)) {
		t.Fatalf("savings = %v, want 50", alert.Metadata["savings"])
	}

	if repeat := svc.CheckPriceUpdate("item_1", dec(450)); repeat != nil {
		t.Fatalf("repeating the same price must return nil: %+v", repeat)
	}
}

func TestUnknownMonitorIsNoOp(t *testing.T) {
	svc, _ := newTestService()
	if svc.CheckPriceUpdate("ghost", dec(100)) != nil {
		t.Fatal("unknown price monitor must be a silent no-op")
	}
	if svc.CheckFlightStatus("ghost", FlightStatusCancelled, 0) != nil {
		t.Fatal("unknown flight monitor must be a silent no-op")
	}
	if svc.CheckWeatherUpdate("ghost", dec(20), "sunny") != nil {
		t.Fatal("unknown weather monitor must be a silent no-op")
	}
}

func TestFlightStatusRules(t *testing.T) {
	svc, clock := newTestService()
	dep := clock.now.Add(24 * time.Hour)
	svc.TrackFlight("f1", "TW101", dep, dep.Add(2*time.Hour), "Tripair")

	if alert := svc.CheckFlightStatus("f1", "boarding", 0); alert != nil {
		t.Fatal("boarding transition must stay silent")
	}
	if alert := svc.CheckFlightStatus("f1", FlightStatusDelayed, 15); alert != nil {
		t.Fatal("a 15 minute delay is below the alert bar")
	}

	alert := svc.CheckFlightStatus("f1", FlightStatusDelayed, 45)
	if alert == nil || alert.Severity != SeverityHigh {
		t.Fatalf("45 min delay should be high: %+v", alert)
	}
	critical := svc.CheckFlightStatus("f1", FlightStatusDelayed, 61)
	if critical == nil || critical.Severity != SeverityCritical {
		t.Fatalf("61 min delay should be critical: %+v", critical)
	}
	cancelled := svc.CheckFlightStatus("f1", FlightStatusCancelled, 0)
	if cancelled == nil || cancelled.Severity != SeverityCritical {
		t.Fatalf("cancellation should always be critical: %+v", cancelled)
	}
	if cancelled.Type != AlertFlightDelay {
		t.Fatalf("type = %s", cancelled.Type)
	}
}

func TestWeatherRules(t *testing.T) {
	svc, _ := newTestService()
	svc.TrackWeather("Lisbon", dec(20), "sunny", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), dec(10))

	if alert := svc.CheckWeatherUpdate("Lisbon", dec(29.9), "sunny"); alert != nil {
		t.Fatal("9.9° swing with same condition must stay silent")
	}

	// Silent updates still advance stored state: 29.9 is the new baseline.
	alert := svc.CheckWeatherUpdate("Lisbon", dec(39.9), "sunny")
	if alert == nil || alert.Severity != SeverityMedium {
		t.Fatalf("10° swing should alert medium: %+v", alert)
	}

	high := svc.CheckWeatherUpdate("Lisbon", dec(20), "sunny")
	if high == nil || high.Severity != SeverityHigh {
		t.Fatalf("19.9° swing should alert high: %+v", high)
	}

	condition := svc.CheckWeatherUpdate("Lisbon", dec(20), "rain")
	if condition == nil || condition.Severity != SeverityMedium {
		t.Fatalf("condition change alone should alert medium: %+v", condition)
	}
}

func TestBookingReminderSeverity(t *testing.T) {
	svc, clock := newTestService()
	urgent := svc.CreateBookingReminder("hotel", "Casa Azul", clock.now.Add(48*time.Hour))
	if urgent.Severity != SeverityHigh {
		t.Fatalf("deadline in 2 days should be high: %s", urgent.Severity)
	}
	relaxed := svc.CreateBookingReminder("hotel", "Casa Azul", clock.now.Add(10*24*time.Hour))
	if relaxed.Severity != SeverityMedium {
		t.Fatalf("deadline in 10 days should be medium: %s", relaxed.Severity)
	}
	if urgent.Type != AlertBookingReminder {
		t.Fatalf("type = %s", urgent.Type)
	}
}

func TestQueriesAndReadState(t *testing.T) {
	svc, clock := newTestService()
	svc.TrackPrice("p1", "flight", dec(500), "USD", dec(5))
	svc.CheckPriceUpdate("p1", dec(400))
	clock.advance(time.Hour)
	since := clock.now
	svc.CreateBookingReminder("hotel", "Casa Azul", clock.now.Add(time.Hour))

	if got := len(svc.UnreadAlerts()); got != 2 {
		t.Fatalf("unread = %d", got)
	}
	if got := len(svc.AlertsByType(AlertPriceDrop)); got != 1 {
		t.Fatalf("by type = %d", got)
	}
	if got := len(svc.AlertsBySeverity(SeverityHigh)); got != 2 {
		t.Fatalf("by severity = %d", got)
	}
	if got := len(svc.AlertsSince(since)); got != 1 {
		t.Fatalf("since = %d", got)
	}

	first := svc.ExportAlerts()[1]
	if !svc.MarkRead(first.ID) {
		t.Fatal("known id should mark read")
	}
	if svc.MarkRead("alert-999999") {
		t.Fatal("unknown id should not mark read")
	}
	if got := len(svc.UnreadAlerts()); got != 1 {
		t.Fatalf("unread after mark = %d", got)
	}
	if flipped := svc.MarkAllRead(); flipped != 1 {
		t.Fatalf("mark all flipped = %d", flipped)
	}
}

func TestClearOldAlertsKeyedOnCreation(t *testing.T) {
	svc, clock := newTestService()
	old := svc.CreateBookingReminder("hotel", "Old", clock.now)
	svc.MarkRead(old.ID)
	clock.advance(10 * 24 * time.Hour)
	svc.CreateBookingReminder("hotel", "Fresh", clock.now)

	removed := svc.ClearOldAlerts(7)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	remaining := svc.ExportAlerts()
	if len(remaining) != 1 || remaining[0].Title != "Booking reminder: Fresh" {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestExportNewestFirst(t *testing.T) {
	svc, clock := newTestService()
	svc.CreateBookingReminder("hotel", "first", clock.now.Add(time.Hour))
	clock.advance(time.Minute)
	svc.CreateBookingReminder("hotel", "second", clock.now.Add(time.Hour))

	exported := svc.ExportAlerts()
	if len(exported) != 2 {
		t.Fatalf("exported = %d", len(exported))
	}
	if exported[0].CreatedAt.Before(exported[1].CreatedAt) {
		t.Fatal("export must order newest first")
	}

	// Mutating the snapshot must not leak into the service log.
	exported[0].Metadata["item_name"] = "tampered"
	if svc.ExportAlerts()[0].Metadata["item_name"] == "tampered" {
		t.Fatal("export must return detached copies")
	}
}

func TestSummary(t *testing.T) {
	svc, clock := newTestService()
	svc.TrackPrice("p1", "flight", dec(500), "USD", dec(5))
	svc.TrackFlight("f1", "TW101", clock.now, clock.now.Add(time.Hour), "Tripair")
	svc.TrackWeather("Lisbon", dec(20), "sunny", clock.now, dec(10))
	svc.CheckPriceUpdate("p1", dec(400))

	summary := svc.Summary()
	if summary.Total != 1 || summary.Unread != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ByType[AlertPriceDrop] != 1 || summary.BySeverity[SeverityHigh] != 1 {
		t.Fatalf("summary counts = %+v", summary)
	}
	if summary.PriceMonitors != 1 || summary.FlightMonitors != 1 || summary.WeatherMonitors != 1 {
		t.Fatalf("monitor counts = %+v", summary)
	}
}

func TestCallbacksInvokedAndPanicsSwallowed(t *testing.T) {
	svc, clock := newTestService()
	var received []Alert
	svc.RegisterCallback(func(Alert) { panic("misbehaving observer") })
	svc.RegisterCallback(func(a Alert) { received = append(received, a) })

	alert := svc.CreateBookingReminder("hotel", "Casa Azul", clock.now.Add(time.Hour))
	if len(received) != 1 || received[0].ID != alert.ID {
		t.Fatalf("second callback should still receive the alert: %+v", received)
	}

	svc.TrackPrice("p1", "flight", dec(500), "USD", dec(5))
	if svc.CheckPriceUpdate("p1", dec(400)) == nil {
		t.Fatal("emission must survive a panicking callback")
	}
	if len(received) != 2 {
		t.Fatalf("received = %d", len(received))
	}
}
