// internal/server/middleware.go
package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wishlink/wishlink/pkg/api"
)

// callerID identifies the requester for rate limiting and ownership. The
// X-User-ID header is set by the upstream identity proxy; anonymous callers
// fall back to their remote address.
func callerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// callerLimiter keeps one token bucket per caller so a burst from one client
// cannot starve the others. Buckets idle past the eviction window are
// dropped to bound memory.
type callerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*callerBucket
	limit    rate.Limit
	burst    int
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	cl := &callerLimiter{
		limiters: make(map[string]*callerBucket),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
	go cl.evict()
	return cl
}

func (cl *callerLimiter) allow(caller string) bool {
	cl.mu.Lock()
	bucket, ok := cl.limiters[caller]
	if !ok {
		bucket = &callerBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.limiters[caller] = bucket
	}
	bucket.lastSeen = time.Now()
	cl.mu.Unlock()

	return bucket.limiter.Allow()
}

func (cl *callerLimiter) evict() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)
		cl.mu.Lock()
		for caller, bucket := range cl.limiters {
			if bucket.lastSeen.Before(cutoff) {
				delete(cl.limiters, caller)
			}
		}
		cl.mu.Unlock()
	}
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		s.logger.WithFields(map[string]interface{}{
			"method":  r.Method,
			"route":   route,
			"status":  recorder.status,
			"elapsed": elapsed.String(),
		}).Info("request")

		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, recorder.status, elapsed)
		}
	})
}

// authMiddleware enforces the configured bearer token. With no token
// configured the API is open, which is the expected mode behind an
// authenticating proxy.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AuthToken != "" {
			header := r.Header.Get("Authorization")
			if header != "Bearer "+s.config.AuthToken {
				s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(callerID(r)) {
			s.writeError(w, http.StatusTooManyRequests, api.ErrCodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
