package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tripwatch/internal/datewindow"
	"tripwatch/internal/pricing"
)

const (
	offersPath  = "/offers"
	quotesPath  = "/quotes"
	flightsPath = "/flights"
	weatherPath = "/weather"
)

// Options parameterise the trip data API client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches priced offers, live quotes, flight status and weather from
// the upstream trip data API. The analytics engine itself never touches the
// network; this client is the embedding application's data supply.
type Client struct {
	opts    Options
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// PriceQuote is the latest observed price of one watched item.
type PriceQuote struct {
	ItemID   string          `json:"item_id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// FlightStatus is the latest observed status of one watched flight.
type FlightStatus struct {
	FlightID     string `json:"flight_id"`
	Status       string `json:"status"`
	DelayMinutes int    `json:"delay_minutes"`
}

// WeatherObservation is the latest forecast for one destination.
type WeatherObservation struct {
	Destination  string          `json:"destination"`
	TemperatureC decimal.Decimal `json:"temperature_c"`
	Condition    string          `json:"condition"`
}

// NewClient constructs a feed client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/api/v1"
	}

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "feed").Logger(),
	}
}

// Offers lists the priced items available for one route and travel date.
func (c *Client) Offers(ctx context.Context, origin, destination string, date time.Time) ([]pricing.PricedItem, error) {
	query := url.Values{}
	query.Set("origin", origin)
	query.Set("destination", destination)
	query.Set("date", date.Format(time.DateOnly))

	var items []pricing.PricedItem
	if err := c.getJSON(ctx, offersPath+"?"+query.Encode(), &items); err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	return items, nil
}

// FetchFunc adapts Offers to the date optimizer's fetch contract.
func (c *Client) FetchFunc() datewindow.FetchFunc {
	return c.Offers
}

// Quotes returns the current price for each requested item id.
func (c *Client) Quotes(ctx context.Context, ids []string) ([]PriceQuote, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var quotes []PriceQuote
	if err := c.getJSON(ctx, quotesPath+"?"+query.Encode(), &quotes); err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	return quotes, nil
}

// FlightStatus returns the live status of one flight.
func (c *Client) FlightStatus(ctx context.Context, flightID string) (FlightStatus, error) {
	var status FlightStatus
	path := fmt.Sprintf("%s/%s/status", flightsPath, url.PathEscape(flightID))
	if err := c.getJSON(ctx, path, &status); err != nil {
		return FlightStatus{}, fmt.Errorf("fetch flight status: %w", err)
	}
	return status, nil
}

// Weather returns the current forecast for one destination.
func (c *Client) Weather(ctx context.Context, destination string) (WeatherObservation, error) {
	query := url.Values{}
	query.Set("destination", destination)

	var observation WeatherObservation
	if err := c.getJSON(ctx, weatherPath+"?"+query.Encode(), &observation); err != nil {
		return WeatherObservation{}, fmt.Errorf("fetch weather: %w", err)
	}
	return observation, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
