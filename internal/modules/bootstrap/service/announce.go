package service

import (
	"context"
	"sync"
	"time"

	"divergence_bot/internal/format"
	"divergence_bot/internal/models"
	divergence "divergence_bot/internal/modules/divergence/service"
	price "divergence_bot/internal/modules/price/service"
	"divergence_bot/internal/notify"
	"divergence_bot/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Announcer шлёт стартовое сообщение: текущие цены и пороги.
type Announcer struct {
	prices       price.Client
	notifier     notify.Notifier
	params       divergence.ParamsSource
	fetchTimeout time.Duration
	sendTimeout  time.Duration
}

func NewAnnouncer(
	prices price.Client,
	notifier notify.Notifier,
	params divergence.ParamsSource,
	fetchTimeout, sendTimeout time.Duration,
) *Announcer {
	return &Announcer{
		prices:       prices,
		notifier:     notifier,
		params:       params,
		fetchTimeout: fetchTimeout,
		sendTimeout:  sendTimeout,
	}
}

func (a *Announcer) Announce(ctx context.Context) {
	prices, err := a.currentPrices(ctx)
	if err != nil {
		logger.Warn("[BOOT] startup prices unavailable: %v", err)
		prices = nil
	}
	notify.Deliver(ctx, a.notifier, format.Startup(prices, a.params.Get()), a.sendTimeout)
}

// currentPrices: обе цены или ошибка; первая неудача отменяет второй запрос.
func (a *Announcer) currentPrices(ctx context.Context) (map[models.Asset]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	var mu sync.Mutex
	out := make(map[models.Asset]float64, len(models.Assets))

	g, gctx := errgroup.WithContext(ctx)
	for _, asset := range models.Assets {
		g.Go(func() error {
			v, err := a.prices.Fetch(gctx, asset)
			if err != nil {
				return err
			}
			mu.Lock()
			out[asset] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
