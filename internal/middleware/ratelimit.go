package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedClients caps the visitor map so an address-spoofing flood
// cannot exhaust memory.
const maxTrackedClients = 100_000

// RateLimiter throttles requests per client IP. Audit runs fan out into
// expensive LLM calls, so the API front door enforces a sustained rate
// with a short burst allowance.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
}

// visitor holds the token-bucket state for one client IP.
type visitor struct {
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per second
// sustained, with bursts up to burst requests.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    float64(burst),
	}
}

// Handler returns middleware that rejects over-limit requests with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for the given IP. When the bucket is empty it
// reports how long the client should wait before retrying.
func (rl *RateLimiter) take(ip string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v := rl.visitors[ip]
	if v == nil {
		if len(rl.visitors) >= maxTrackedClients {
			return 0, time.Duration(float64(time.Second) / rl.rate), false
		}
		v = &visitor{tokens: rl.burst, refilled: now}
		rl.visitors[ip] = v
	}

	v.tokens = math.Min(rl.burst, v.tokens+now.Sub(v.refilled).Seconds()*rl.rate)
	v.refilled = now
	v.lastSeen = now

	if v.tokens < 1 {
		shortfall := 1 - v.tokens
		return 0, time.Duration(shortfall / rl.rate * float64(time.Second)), false
	}
	v.tokens--
	return int(v.tokens), 0, true
}

// StartCleanup sweeps idle visitors every interval. The returned cancel
// function stops the sweeper.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.sweep(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// Len reports the number of tracked client IPs.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP uses RemoteAddr only. Forwarding headers are ignored here
// since a client can forge them to escape its bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
