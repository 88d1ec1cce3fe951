package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/filmgate/auth-service/internal/api/helpers"
)

const ipLimiterSweepInterval = 10 * time.Minute

// IPRateLimiter is a process-local token-bucket guard per client IP. It
// sits in front of the distributed limiter and sheds abusive floods
// before they cost a Redis round trip.
type IPRateLimiter struct {
	ips   sync.Map
	rps   rate.Limit
	burst int
}

func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{rps: rps, burst: burst}
	go l.sweepLoop()
	return l
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if existing, ok := l.ips.Load(ip); ok {
		return existing.(*rate.Limiter)
	}
	limiter, _ := l.ips.LoadOrStore(ip, rate.NewLimiter(l.rps, l.burst))
	return limiter.(*rate.Limiter)
}

// sweepLoop periodically drops all per-IP buckets. Idle entries would
// otherwise accumulate forever.
func (l *IPRateLimiter) sweepLoop() {
	for {
		time.Sleep(ipLimiterSweepInterval)
		l.ips.Range(func(key, _ any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware rejects requests exceeding the per-IP rate.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := helpers.GetRealIP(r)
		if !l.limiterFor(ip).Allow() {
			slog.Warn("local rate limit exceeded", "ip", ip, "path", r.URL.Path)
			helpers.RespondError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
