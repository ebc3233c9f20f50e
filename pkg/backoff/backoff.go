// Package backoff считает паузы между переподключениями: base*2^attempt, потолок max, ±jitter.
package backoff

import (
	"math/rand"
	"time"
)

type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64 // 0.2 => ±20%
	attempt int
}

func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		base:   base,
		max:    max,
		jitter: jitter,
	}
}

// NewDefault: 1s .. 30s, ±20%.
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next возвращает следующую паузу и увеличивает счётчик попыток.
func (b *Backoff) Next() time.Duration {
	delay := b.max
	// сдвиг дальше 30 бит всё равно упрётся в max
	if b.attempt < 30 {
		delay = b.base * time.Duration(int64(1)<<b.attempt)
		if delay > b.max || delay <= 0 {
			delay = b.max
		}
	}

	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) Attempt() int {
	return b.attempt
}
