package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FxPilot/internal/domain/models"
	xhttp "FxPilot/pkg/http"
	"FxPilot/pkg/logger"
)

// Refresher pulls the latest exchange rates, bond yields and news
// aggregates from the configured upstream endpoints and writes them into
// the CSV store. Retries and provider quirks live upstream; a refresh
// either lands a full day or returns an error.
type Refresher struct {
	store    *Store
	client   *xhttp.Client
	ratesURL string
	bondsURL string
	newsURL  string
	l        *logger.Logger
}

func NewRefresher(store *Store, ratesURL, bondsURL, newsURL string, timeout time.Duration, l *logger.Logger) *Refresher {
	return &Refresher{
		store:    store,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		ratesURL: ratesURL,
		bondsURL: bondsURL,
		newsURL:  newsURL,
		l:        l,
	}
}

type ratesResponse struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

type bondsResponse struct {
	Date   string             `json:"date"`
	Yields map[string]float64 `json:"yields"`
}

type newsResponse struct {
	Date    string                      `json:"date"`
	Regions map[string]models.NewsPoint `json:"regions"`
}

// Refresh fetches all three sources and upserts their day into the store.
// Returns the landed day.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	var rates ratesResponse
	if err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         r.ratesURL,
		QueryParams: map[string][]string{"pairs": {strings.Join(r.store.Pairs(), ",")}},
	}, &rates); err != nil {
		return "", fmt.Errorf("fetch rates: %w", err)
	}
	if rates.Date == "" || len(rates.Rates) == 0 {
		return "", fmt.Errorf("rates response empty")
	}

	var bonds bondsResponse
	if err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    r.bondsURL,
	}, &bonds); err != nil {
		return "", fmt.Errorf("fetch bond yields: %w", err)
	}

	var news newsResponse
	if r.newsURL != "" {
		if err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    r.newsURL,
		}, &news); err != nil {
			// News aggregates are optional features; zero-fill and continue.
			r.l.Warn("news fetch failed, features zero-filled", logger.Error(err))
			news.Regions = nil
		}
	}

	if err := r.store.UpsertDay(rates.Date, rates.Rates, bonds.Yields, news.Regions); err != nil {
		return "", fmt.Errorf("write refreshed day: %w", err)
	}

	r.l.Info("market data refreshed",
		logger.String("date", rates.Date),
		logger.Int("pairs", len(rates.Rates)),
		logger.Int("bonds", len(bonds.Yields)),
	)
	return rates.Date, nil
}
