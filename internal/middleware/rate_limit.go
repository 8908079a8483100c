package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"turnos-gateway/internal/platform/logger"

	"golang.org/x/time/rate"
)

// limiterIdleTTL: un limiter sin uso por este tiempo se descarta.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore guarda un limiter por IP. Las entradas ociosas se barren
// como mucho una vez por idleTTL.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	every     time.Duration
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterStore(every time.Duration, burst int) *limiterStore {
	idle := limiterIdleTTL
	// nunca antes de que el bucket se haya vuelto a llenar
	if refill := every * time.Duration(burst); refill > idle {
		idle = refill
	}
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		every:    every,
		burst:    burst,
		idleTTL:  idle,
		now:      time.Now,
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e, ok := s.limiters[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep requiere mu tomado.
func (s *limiterStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.idleTTL {
		return
	}
	for ip, e := range s.limiters {
		if now.Sub(e.lastSeen) >= s.idleTTL {
			delete(s.limiters, ip)
		}
	}
	s.lastSweep = now
}

// LoginRateLimit limita intentos de login por IP (perMinute por minuto, ráfaga burst).
// perMinute <= 0 desactiva el límite.
func LoginRateLimit(perMinute, burst int, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	store := newLimiterStore(time.Minute/time.Duration(perMinute), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !store.get(ip).Allow() {
				log.Warn("login rate limit exceeded", map[string]any{"ip": ip})
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "demasiados intentos, probá de nuevo en un minuto"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP usa RemoteAddr. Los headers de proxy solo cuentan si el router monta
// chi RealIP (TRUST_PROXY_HEADERS).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
