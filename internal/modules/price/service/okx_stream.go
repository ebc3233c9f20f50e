package service

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"divergence_bot/internal/models"
	"divergence_bot/internal/modules/config"
	"divergence_bot/pkg/backoff"
	"divergence_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const okxPingEvery = 20 * time.Second

// OKXStream держит последнюю mark price из публичного канала mark-price.
// Fetch не ходит в сеть, а отдаёт кэш, если он свежий.
type OKXStream struct {
	url       string
	dialer    *websocket.Dialer
	freshness time.Duration
	now       func() time.Time

	mu   sync.RWMutex
	last map[models.Asset]models.Sample

	connected atomic.Bool
}

type markPriceFrame struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		MarkPx string `json:"markPx"`
		TS     string `json:"ts"`
	} `json:"data"`
}

func NewOKXStream(cfg config.PriceConfig) *OKXStream {
	return &OKXStream{
		url:       cfg.WSURL,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		freshness: cfg.Freshness,
		now:       time.Now,
		last:      make(map[models.Asset]models.Sample),
	}
}

func (s *OKXStream) Connected() bool { return s.connected.Load() }

func (s *OKXStream) Fetch(_ context.Context, asset models.Asset) (float64, error) {
	s.mu.RLock()
	smp, ok := s.last[asset]
	s.mu.RUnlock()

	if !ok {
		return 0, errors.Wrapf(ErrStale, "%s: no mark price received yet", asset)
	}
	if age := s.now().Sub(smp.Time); age > s.freshness {
		return 0, errors.Wrapf(ErrStale, "%s: mark price age %s", asset, age.Truncate(time.Second))
	}
	return smp.Price, nil
}

// Run: цикл подключения с экспоненциальной паузой, до отмены ctx.
func (s *OKXStream) Run(ctx context.Context) {
	bo := backoff.NewDefault()
	for {
		err := s.session(ctx, bo)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return
		}

		wait := bo.Next()
		logger.Warn("[OKX] stream dropped: %v, reconnect in %s (attempt %d)", err, wait, bo.Attempt())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *OKXStream) session(ctx context.Context, bo *backoff.Backoff) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.Close()

	args := make([]map[string]string, 0, len(models.Assets))
	for _, a := range models.Assets {
		args = append(args, map[string]string{"channel": "mark-price", "instId": okxInstID(a)})
	}
	sub, _ := sonic.Marshal(map[string]any{"op": "subscribe", "args": args})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return errors.Wrap(err, "subscribe")
	}

	// закрываем соединение по ctx, чтобы разблокировать ReadMessage
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(okxPingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-t.C:
				// OKX отвечает "pong" на текстовый "ping", иначе рвёт соединение
				_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		subscribed, err := s.handle(msg)
		if err != nil {
			return err
		}
		if subscribed {
			s.connected.Store(true)
			bo.Reset()
			logger.Info("[OKX] subscribed to mark-price")
		}
	}
}

// handle разбирает кадр. true: подтверждение подписки.
func (s *OKXStream) handle(msg []byte) (bool, error) {
	if string(msg) == "pong" {
		return false, nil
	}

	var frame markPriceFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		logger.Debug("[OKX] skip frame: %v", err)
		return false, nil
	}
	switch frame.Event {
	case "subscribe":
		return true, nil
	case "error":
		return false, errors.Errorf("okx error %s: %s", frame.Code, frame.Msg)
	}
	if frame.Arg.Channel != "mark-price" {
		return false, nil
	}

	for _, d := range frame.Data {
		asset, ok := assetByInstID(d.InstID)
		if !ok {
			continue
		}
		px, err := strconv.ParseFloat(d.MarkPx, 64)
		if err != nil || px <= 0 {
			continue
		}
		ms, err := strconv.ParseInt(d.TS, 10, 64)
		if err != nil {
			continue
		}
		s.store(asset, models.Sample{Time: time.UnixMilli(ms), Price: px})
	}
	return false, nil
}

func (s *OKXStream) store(asset models.Asset, smp models.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.last[asset]; ok && smp.Time.Before(prev.Time) {
		return
	}
	s.last[asset] = smp
}

func assetByInstID(instID string) (models.Asset, bool) {
	for _, a := range models.Assets {
		if okxInstID(a) == instID {
			return a, true
		}
	}
	return "", false
}
