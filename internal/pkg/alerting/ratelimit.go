package alerting

import (
	"sync"
	"time"
)

// cleanupThreshold - после стольких записей Allow удаляет истёкшие.
const cleanupThreshold = 100

// RateLimiter подавляет повторные алерты с одним кодом внутри окна.
// Состояние in-memory: в режиме serve оно живёт всё время процесса,
// в одноразовых командах (poll, watchdog) каждый запуск начинает с пустой таблицы.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	sent   map[string]time.Time
	now    func() time.Time
}

// NewRateLimiter создаёт RateLimiter с указанным окном.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		sent:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow сообщает, можно ли отправить алерт с кодом errorCode, и при true
// атомарно помечает код отправленным.
func (r *RateLimiter) Allow(errorCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.sent) > cleanupThreshold {
		for code, lastSent := range r.sent {
			if now.Sub(lastSent) >= r.window {
				delete(r.sent, code)
			}
		}
	}

	if lastSent, ok := r.sent[errorCode]; ok && now.Sub(lastSent) < r.window {
		return false
	}
	r.sent[errorCode] = now
	return true
}

// Reset сбрасывает состояние для errorCode.
func (r *RateLimiter) Reset(errorCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sent, errorCode)
}

// SetNowFunc подменяет часы. Используется в тестах.
func (r *RateLimiter) SetNowFunc(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}
