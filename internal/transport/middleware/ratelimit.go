package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"golang.org/x/time/rate"
)

// SubjectRateLimiter keeps one token bucket per authenticated subject.
type SubjectRateLimiter struct {
	base     *transport.BaseHandler
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	mu       sync.Mutex
	limiters map[string]*subjectLimiter
}

type subjectLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSubjectRateLimiter returns nil when perSecond is not positive, which
// disables the middleware.
func NewSubjectRateLimiter(base *transport.BaseHandler, perSecond float64, burst int) *SubjectRateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &SubjectRateLimiter{
		base:     base,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		limiters: make(map[string]*subjectLimiter),
	}
}

func (l *SubjectRateLimiter) get(subject string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}

	entry, ok := l.limiters[subject]
	if !ok {
		entry = &subjectLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[subject] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *SubjectRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		reservation := l.get(principal.Subject, now).ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			l.base.WriteAppError(w, internal.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}
