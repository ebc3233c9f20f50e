package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"divergence_bot/internal/models"
	"divergence_bot/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxStatsBody = 8 << 20

// Variational: REST-клиент omni API (/metadata/stats), одна выдача на обе ноги.
type Variational struct {
	http      *http.Client
	url       string
	freshness time.Duration
	limiter   *rate.Limiter
	now       func() time.Time

	group singleflight.Group
}

type statsPayload struct {
	Listings []listing `json:"listings"`
}

type listing struct {
	Ticker    string `json:"ticker"`
	MarkPrice string `json:"mark_price"`
	Quotes    struct {
		UpdatedAt string `json:"updated_at"`
	} `json:"quotes"`
}

func NewVariational(cfg config.PriceConfig) *Variational {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Variational{
		http:      &http.Client{Timeout: cfg.Timeout},
		url:       strings.TrimRight(cfg.BaseURL, "/") + cfg.Endpoint,
		freshness: cfg.Freshness,
		limiter:   rate.NewLimiter(rate.Limit(rps), 2),
		now:       time.Now,
	}
}

// Fetch: цена ноги. Одновременные вызовы BTC и ETH делят один HTTP-запрос.
func (v *Variational) Fetch(ctx context.Context, asset models.Asset) (float64, error) {
	res, err, _ := v.group.Do("stats", func() (any, error) {
		return v.stats(ctx)
	})
	if err != nil {
		return 0, err
	}
	byTicker := res.(map[string]listing)

	l, ok := byTicker[string(asset)]
	if !ok {
		return 0, errors.Wrapf(ErrMalformedResponse, "ticker %s not in listings", asset)
	}
	return v.parse(asset, l)
}

func (v *Variational) parse(asset models.Asset, l listing) (float64, error) {
	if l.MarkPrice == "" {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: empty mark_price", asset)
	}
	px, err := decimal.NewFromString(l.MarkPrice)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: mark_price %q", asset, l.MarkPrice)
	}
	if !px.IsPositive() {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: mark_price %s <= 0", asset, px)
	}

	if l.Quotes.UpdatedAt == "" {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: empty quotes.updated_at", asset)
	}
	updated, err := parseTimestamp(l.Quotes.UpdatedAt)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: updated_at %q", asset, l.Quotes.UpdatedAt)
	}
	if age := v.now().Sub(updated); age > v.freshness {
		return 0, errors.Wrapf(ErrStale, "%s: quote age %s > %s", asset, age.Truncate(time.Second), v.freshness)
	}

	f, _ := px.Float64()
	return f, nil
}

func (v *Variational) stats(ctx context.Context) (map[string]listing, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(ErrRateLimited, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, errors.Wrap(ErrTransport, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBody))
	if err != nil {
		return nil, classify(ctx, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Wrapf(ErrRateLimited, "http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return nil, errors.Wrapf(ErrTransport, "http %d: %s", resp.StatusCode, snippet(body))
	}

	var payload statsPayload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if len(payload.Listings) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "no listings")
	}

	out := make(map[string]listing, len(payload.Listings))
	for _, l := range payload.Listings {
		out[strings.ToUpper(strings.TrimSpace(l.Ticker))] = l
	}
	return out, nil
}

// parseTimestamp: RFC3339 с любой дробной частью; без зоны считаем UTC.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
