package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles login attempts per client IP with a fixed
// counting window. State is in-process only; a restart clears it, which is
// acceptable for a brute-force speed bump.
type LoginRateLimiter struct {
	mu      sync.Mutex
	maxHits int
	window  time.Duration
	counts  map[string]*hitWindow
	maxKeys int
}

type hitWindow struct {
	start time.Time
	hits  int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits: maxHits,
		window:  window,
		counts:  make(map[string]*hitWindow),
		maxKeys: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.counts[ip]
	if current == nil || now.Sub(current.start) >= l.window {
		l.counts[ip] = &hitWindow{start: now, hits: 1}
		l.prune(now)
		return true, 0
	}

	current.hits++
	if current.hits > l.maxHits {
		retryAfter := current.start.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	return true, 0
}

// prune drops windows that have already lapsed; called with the lock held.
func (l *LoginRateLimiter) prune(now time.Time) {
	if len(l.counts) <= l.maxKeys {
		return
	}
	for ip, current := range l.counts {
		if now.Sub(current.start) >= l.window {
			delete(l.counts, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
