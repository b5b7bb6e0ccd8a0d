package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tripwatch/internal/alerting"
	"tripwatch/internal/config"
	"tripwatch/internal/feed"
)

type stubFeed struct {
	quotes    map[string]feed.PriceQuote
	flights   map[string]feed.FlightStatus
	weather   map[string]feed.WeatherObservation
	quotesErr error
}

func (f *stubFeed) Quotes(_ context.Context, itemIDs []string) ([]feed.PriceQuote, error) {
	if f.quotesErr != nil {
		return nil, f.quotesErr
	}
	out := make([]feed.PriceQuote, 0, len(itemIDs))
	for _, id := range itemIDs {
		if quote, ok := f.quotes[id]; ok {
			out = append(out, quote)
		}
	}
	return out, nil
}

func (f *stubFeed) FlightStatus(_ context.Context, flightID string) (feed.FlightStatus, error) {
	status, ok := f.flights[flightID]
	if !ok {
		return feed.FlightStatus{}, errors.New("unknown flight")
	}
	return status, nil
}

func (f *stubFeed) Weather(_ context.Context, destination string) (feed.WeatherObservation, error) {
	observation, ok := f.weather[destination]
	if !ok {
		return feed.WeatherObservation{}, errors.New("unknown destination")
	}
	return observation, nil
}

func watchConfig() *config.Config {
	return &config.Config{
		Watch: config.WatchConfig{
			Prices: []config.PriceWatch{
				{ItemID: "hotel_1", ItemType: "hotel", ThresholdPct: 5},
			},
			Flights: []config.FlightWatch{
				{FlightID: "fl_1", FlightNumber: "TW101", Airline: "TripAir", Departure: "2026-09-15T08:00:00Z"},
			},
			Destinations: []string{"Lisbon"},
		},
	}
}

func TestProcessCycleEmitsAlerts(t *testing.T) {
	fd := &stubFeed{
		quotes: map[string]feed.PriceQuote{
			"hotel_1": {ItemID: "hotel_1", Price: decimal.NewFromInt(500), Currency: "USD"},
		},
		flights: map[string]feed.FlightStatus{
			"fl_1": {FlightID: "fl_1", Status: "scheduled", DelayMinutes: 0},
		},
		weather: map[string]feed.WeatherObservation{
			"Lisbon": {Destination: "Lisbon", TemperatureC: decimal.NewFromInt(20), Condition: "sunny"},
		},
	}

	alerts := alerting.NewService(alerting.Options{}, zerolog.Nop())
	svc := New(watchConfig(), nil, fd, alerts, zerolog.Nop())

	ctx := context.Background()
	if err := svc.registerWatches(ctx); err != nil {
		t.Fatalf("registerWatches: %v", err)
	}

	// First cycle observes the same values everywhere: nothing fires.
	if err := svc.ProcessCycle(ctx, time.Now()); err != nil {
		t.Fatalf("ProcessCycle: %v", err)
	}
	if got := alerts.Summary().Total; got != 0 {
		t.Fatalf("expected no alerts on a quiet cycle, got %d", got)
	}

	// Drop the hotel price 10%, delay the flight, and swing the weather.
	fd.quotes["hotel_1"] = feed.PriceQuote{ItemID: "hotel_1", Price: decimal.NewFromInt(450), Currency: "USD"}
	fd.flights["fl_1"] = feed.FlightStatus{FlightID: "fl_1", Status: "delayed", DelayMinutes: 45}
	fd.weather["Lisbon"] = feed.WeatherObservation{Destination: "Lisbon", TemperatureC: decimal.NewFromInt(34), Condition: "sunny"}

	if err := svc.ProcessCycle(ctx, time.Now()); err != nil {
		t.Fatalf("ProcessCycle: %v", err)
	}

	summary := alerts.Summary()
	if summary.Total != 3 {
		t.Fatalf("expected 3 alerts, got %d", summary.Total)
	}
	if got := summary.ByType[alerting.AlertPriceDrop]; got != 1 {
		t.Errorf("price drop alerts = %d, want 1", got)
	}
	if got := summary.ByType[alerting.AlertFlightDelay]; got != 1 {
		t.Errorf("flight delay alerts = %d, want 1", got)
	}
	if got := summary.ByType[alerting.AlertWeatherChange]; got != 1 {
		t.Errorf("weather change alerts = %d, want 1", got)
	}
}

func TestRegisterWatchesSeedsBaseline(t *testing.T) {
	fd := &stubFeed{
		quotes: map[string]feed.PriceQuote{
			"hotel_1": {ItemID: "hotel_1", Price: decimal.NewFromInt(500), Currency: "USD"},
		},
		flights: map[string]feed.FlightStatus{},
		weather: map[string]feed.WeatherObservation{
			"Lisbon": {Destination: "Lisbon", TemperatureC: decimal.NewFromInt(20), Condition: "sunny"},
		},
	}

	alerts := alerting.NewService(alerting.Options{}, zerolog.Nop())
	svc := New(watchConfig(), nil, fd, alerts, zerolog.Nop())

	if err := svc.registerWatches(context.Background()); err != nil {
		t.Fatalf("registerWatches: %v", err)
	}

	monitor, ok := alerts.PriceMonitorSnapshot("hotel_1")
	if !ok {
		t.Fatal("price monitor not registered")
	}
	if !monitor.CurrentPrice.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("baseline = %s, want 500", monitor.CurrentPrice)
	}
	if !monitor.ThresholdPct.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("threshold = %s, want 5", monitor.ThresholdPct)
	}
}

func TestRegisterWatchesQuoteFailure(t *testing.T) {
	fd := &stubFeed{quotesErr: errors.New("feed down")}

	alerts := alerting.NewService(alerting.Options{}, zerolog.Nop())
	svc := New(watchConfig(), nil, fd, alerts, zerolog.Nop())

	if err := svc.registerWatches(context.Background()); err == nil {
		t.Fatal("expected error when baseline quotes cannot be fetched")
	}
}
