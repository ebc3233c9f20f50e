package service

import (
	"context"
	"net"

	"divergence_bot/internal/models"

	"github.com/pkg/errors"
)

// Client: источник текущей mark price. Любая ошибка = "нет сэмпла в этом тике".
type Client interface {
	Fetch(ctx context.Context, asset models.Asset) (float64, error)
}

var (
	ErrTimeout           = errors.New("price fetch timeout")
	ErrRateLimited       = errors.New("price fetch rate limited")
	ErrMalformedResponse = errors.New("malformed price response")
	ErrStale             = errors.New("stale price")
	ErrTransport         = errors.New("price transport error")
)

// Reason: короткая метка ошибки для метрик и логов.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "transport"
	}
}

// classify сводит ошибку http-клиента к таксономии пакета.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return errors.Wrap(ErrTransport, err.Error())
}

// okxInstID: бессрочный своп OKX для ноги пары.
func okxInstID(asset models.Asset) string {
	return string(asset) + "-USDT-SWAP"
}
