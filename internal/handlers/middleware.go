package handlers

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"perfdash-service/internal/metrics"
)

// DefaultMaxClients сколько клиентов ограничитель помнит одновременно
const DefaultMaxClients = 10000

// ClientLimiter ограничивает частоту запросов отдельно для каждого клиента.
// Лимитеры давно не обращавшихся клиентов вытесняются из LRU.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      float64
	burst    int
}

// NewClientLimiter создает ограничитель на rps запросов в секунду с запасом burst
// для не более чем maxClients клиентов (0 - DefaultMaxClients)
func NewClientLimiter(rps float64, burst, maxClients int) (*ClientLimiter, error) {
	if burst <= 0 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	limiters, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &ClientLimiter{
		limiters: limiters,
		rps:      rps,
		burst:    burst,
	}, nil
}

// Allow расходует токен клиента
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters.Add(client, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Clients количество отслеживаемых клиентов
func (l *ClientLimiter) Clients() int {
	return l.limiters.Len()
}

// Middleware отвечает 429, когда клиент превысил лимит
func (l *ClientLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r)) {
				metrics.RequestsTotal.WithLabelValues(routeLabel(r), r.Method, "429").Inc()
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeLabel шаблон маршрута вместо пути, чтобы id отчетов не размножали метки
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
