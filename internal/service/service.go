package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tripwatch/internal/alerting"
	"tripwatch/internal/config"
	"tripwatch/internal/feed"
	"tripwatch/internal/scheduler"
)

// Feed is the slice of the upstream travel feed the watch loop consumes.
type Feed interface {
	Quotes(ctx context.Context, itemIDs []string) ([]feed.PriceQuote, error)
	FlightStatus(ctx context.Context, flightID string) (feed.FlightStatus, error)
	Weather(ctx context.Context, destination string) (feed.WeatherObservation, error)
}

// Service orchestrates feed polling, the alerts engine, and notification.
type Service struct {
	scheduler *scheduler.Scheduler
	feed      Feed
	alerts    *alerting.Service
	logger    zerolog.Logger

	priceWatches []config.PriceWatch
	flights      []config.FlightWatch
	destinations []string

	seeded bool
}

// New constructs the watch service around an alerts engine.
func New(cfg *config.Config, sched *scheduler.Scheduler, fd Feed, alerts *alerting.Service, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:    sched,
		feed:         fd,
		alerts:       alerts,
		logger:       logger.With().Str("component", "service").Logger(),
		priceWatches: cfg.Watch.Prices,
		flights:      cfg.Watch.Flights,
		destinations: cfg.Watch.Destinations,
	}
}

// Run registers the configured watches and begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if err := s.registerWatches(ctx); err != nil {
		return err
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// registerWatches 将配置中的监控项注册到告警引擎，并抓取初始基线。
func (s *Service) registerWatches(ctx context.Context) error {
	if s.seeded {
		return nil
	}

	if len(s.priceWatches) > 0 {
		ids := make([]string, 0, len(s.priceWatches))
		for _, watch := range s.priceWatches {
			ids = append(ids, watch.ItemID)
		}
		quotes, err := s.feed.Quotes(ctx, ids)
		if err != nil {
			return fmt.Errorf("seed price baselines: %w", err)
		}
		byID := make(map[string]feed.PriceQuote, len(quotes))
		for _, quote := range quotes {
			byID[quote.ItemID] = quote
		}
		for _, watch := range s.priceWatches {
			baseline := decimal.Zero
			currency := ""
			if quote, ok := byID[watch.ItemID]; ok {
				baseline = quote.Price
				currency = quote.Currency
			} else {
				s.logger.Warn().Str("item_id", watch.ItemID).Msg("no initial quote; baseline adopted on first update")
			}
			s.alerts.TrackPrice(watch.ItemID, watch.ItemType, baseline, currency, decimal.NewFromFloat(watch.ThresholdPct))
		}
	}

	for _, watch := range s.flights {
		departure := s.parseWatchTime(watch.FlightID, "departure", watch.Departure)
		arrival := s.parseWatchTime(watch.FlightID, "arrival", watch.Arrival)
		s.alerts.TrackFlight(watch.FlightID, watch.FlightNumber, departure, arrival, watch.Airline)
	}

	for _, destination := range s.destinations {
		observation, err := s.feed.Weather(ctx, destination)
		if err != nil {
			s.logger.Warn().Err(err).Str("destination", destination).Msg("no initial weather observation; seeding empty state")
			s.alerts.TrackWeather(destination, decimal.Zero, "", time.Now().UTC(), decimal.Zero)
			continue
		}
		s.alerts.TrackWeather(destination, observation.TemperatureC, observation.Condition, time.Now().UTC(), decimal.Zero)
	}

	s.seeded = true
	s.logger.Info().
		Int("prices", len(s.priceWatches)).
		Int("flights", len(s.flights)).
		Int("destinations", len(s.destinations)).
		Msg("watches registered")
	return nil
}

// ProcessCycle 执行单个轮询周期：拉取报价、航班状态与天气并交给告警引擎评估。
func (s *Service) ProcessCycle(ctx context.Context, cycle time.Time) error {
	s.pollPrices(ctx, cycle)
	s.pollFlights(ctx)
	s.pollWeather(ctx)

	summary := s.alerts.Summary()
	s.logger.Info().Time("cycle", cycle).
		Int("total_alerts", summary.Total).
		Int("unread_alerts", summary.Unread).
		Msg("watch cycle complete")
	return nil
}

func (s *Service) parseWatchTime(flightID, field, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("flight_id", flightID).
			Str("field", field).
			Msg("unparseable schedule time; leaving unset")
		return time.Time{}
	}
	return ts
}

func (s *Service) pollPrices(ctx context.Context, cycle time.Time) {
	if len(s.priceWatches) == 0 {
		return
	}
	ids := make([]string, 0, len(s.priceWatches))
	for _, watch := range s.priceWatches {
		ids = append(ids, watch.ItemID)
	}
	quotes, err := s.feed.Quotes(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Time("cycle", cycle).Msg("failed to fetch quotes")
		return
	}
	for _, quote := range quotes {
		alert := s.alerts.CheckPriceUpdate(quote.ItemID, quote.Price)
		if alert != nil {
			s.logger.Info().
				Str("item_id", quote.ItemID).
				Str("alert_id", alert.ID).
				Str("severity", string(alert.Severity)).
				Msg("price alert emitted")
		}
	}
}

func (s *Service) pollFlights(ctx context.Context) {
	for _, watch := range s.flights {
		status, err := s.feed.FlightStatus(ctx, watch.FlightID)
		if err != nil {
			s.logger.Error().Err(err).Str("flight_id", watch.FlightID).Msg("failed to fetch flight status")
			continue
		}
		alert := s.alerts.CheckFlightStatus(watch.FlightID, status.Status, status.DelayMinutes)
		if alert != nil {
			s.logger.Info().
				Str("flight_id", watch.FlightID).
				Str("alert_id", alert.ID).
				Str("severity", string(alert.Severity)).
				Msg("flight alert emitted")
		}
	}
}

func (s *Service) pollWeather(ctx context.Context) {
	for _, destination := range s.destinations {
		observation, err := s.feed.Weather(ctx, destination)
		if err != nil {
			s.logger.Error().Err(err).Str("destination", destination).Msg("failed to fetch weather")
			continue
		}
		alert := s.alerts.CheckWeatherUpdate(destination, observation.TemperatureC, observation.Condition)
		if alert != nil {
			s.logger.Info().
				Str("destination", destination).
				Str("alert_id", alert.ID).
				Str("severity", string(alert.Severity)).
				Msg("weather alert emitted")
		}
	}
}
