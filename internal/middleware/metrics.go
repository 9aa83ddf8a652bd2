package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// LoginAttempts counts login attempts by outcome (success, failure, invalid).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// PostMutations counts successful post writes by action.
	PostMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_post_mutations_total",
		Help: "Total number of post create, update and delete operations",
	}, []string{"action"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector. Collectors
// register on the default registry, so repeated calls share one instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
