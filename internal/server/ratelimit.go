package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/studykit-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained POST rate per caller (requests/second).
	defaultRateLimit = 10
	// defaultRateBurst is the burst allowed per caller.
	defaultRateBurst = 20
	// bucketIdleTTL is how long an unused caller bucket is kept.
	bucketIdleTTL = 5 * time.Minute
)

// bucket is one caller's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles generation and chat requests per caller. Requests
// are keyed on the authenticated user id, so one user's quiz batch cannot
// starve another user behind the same NAT. In development mode every
// request runs as DevUserID and the client IP is used instead.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	log     *slog.Logger
	// now is swapped in tests.
	now func() time.Time
}

// newRateLimiter constructs a rateLimiter and starts the eviction loop,
// which exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: bucketIdleTTL,
		log:     log,
		now:     time.Now,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// callerKey identifies who a request is charged to.
func callerKey(r *http.Request) string {
	if user := userFromContext(r.Context()); user != "" && user != DevUserID {
		return "user:" + user
	}
	return "ip:" + clientIP(r)
}

// limiterFor returns the bucket of key, creating it on first use.
func (rl *rateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.now()
	return b.limiter
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than idleTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// middleware rejects a request with 429 when its caller has no token left.
// Retry-After carries the whole seconds until the next token. It must run
// after authMiddleware so the caller is known.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		res := rl.limiterFor(key).ReserveN(rl.now(), 1)
		if !res.OK() {
			rl.reject(w, r, key, time.Second)
			return
		}
		if wait := res.DelayFrom(rl.now()); wait > 0 {
			res.CancelAt(rl.now())
			rl.reject(w, r, key, wait)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *rateLimiter) reject(w http.ResponseWriter, r *http.Request, key string, wait time.Duration) {
	retry := max(1, int(math.Ceil(wait.Seconds())))
	logging.FromContext(r.Context()).Warn("rate limit exceeded",
		slog.String("caller", key),
		slog.String("path", r.URL.Path),
		slog.Int("retry_after_s", retry),
	)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
}

// clientIP extracts the remote IP from the request, stripping the port.
// X-Forwarded-For is not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
