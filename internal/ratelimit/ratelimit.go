// Package ratelimit provides token-bucket limiters for websocket traffic: one
// per connection for inbound events and a keyed set for upgrade attempts.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewLimiter refills rate tokens per second up to burst. A full bucket is
// available immediately.
func NewLimiter(rate float64, burst int) *Limiter {
	return newLimiter(rate, burst, time.Now)
}

func newLimiter(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: now(),
		now:        now,
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.lastUpdate).Seconds() * l.rate
	l.lastUpdate = now
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}
	return false
}

// idle reports whether the bucket has been full for at least d.
func (l *Limiter) idle(d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := l.now().Sub(l.lastUpdate)
	return elapsed >= d && l.tokens+elapsed.Seconds()*l.rate >= float64(l.burst)
}

// KeyedLimiters hands out one Limiter per key (a remote host, say) and drops
// limiters that have sat idle with a full bucket.
type KeyedLimiters struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	idleTTL  time.Duration
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewKeyedLimiters(rate float64, burst int, idleTTL time.Duration) *KeyedLimiters {
	kl := &KeyedLimiters{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
		idleTTL:  idleTTL,
		stop:     make(chan struct{}),
	}
	go kl.cleanup()
	return kl
}

func (kl *KeyedLimiters) Get(key string) *Limiter {
	kl.mu.RLock()
	limiter, ok := kl.limiters[key]
	kl.mu.RUnlock()
	if ok {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if limiter, ok := kl.limiters[key]; ok {
		return limiter
	}
	limiter = NewLimiter(kl.rate, kl.burst)
	kl.limiters[key] = limiter
	return limiter
}

func (kl *KeyedLimiters) Allow(key string) bool {
	return kl.Get(key).Allow()
}

func (kl *KeyedLimiters) Len() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.limiters)
}

func (kl *KeyedLimiters) Stop() {
	kl.stopOnce.Do(func() { close(kl.stop) })
}

func (kl *KeyedLimiters) cleanup() {
	ticker := time.NewTicker(kl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stop:
			return
		case <-ticker.C:
			kl.sweep()
		}
	}
}

func (kl *KeyedLimiters) sweep() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, limiter := range kl.limiters {
		if limiter.idle(kl.idleTTL) {
			delete(kl.limiters, key)
		}
	}
}
