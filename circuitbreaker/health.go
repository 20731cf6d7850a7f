// Package circuitbreaker tracks the health of external backends, such as
// the speech command, and stops calling one that keeps failing.
package circuitbreaker

import (
	"sync"
	"time"

	"blockstream/logger"
)

// BackendHealth tracks the health status of a backend
type BackendHealth struct {
	Name            string    `json:"name"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	TotalRequests   int       `json:"total_requests"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastSuccessTime time.Time `json:"last_success_time"`
	CircuitOpen     bool      `json:"circuit_open"`
	NextRetryTime   time.Time `json:"next_retry_time"`
}

// Config controls circuit breaker behavior
type Config struct {
	FailureThreshold   int           `json:"failure_threshold"`    // Consecutive failures before opening the circuit
	BackoffDuration    time.Duration `json:"backoff_duration"`     // Wait before retrying a failed backend
	MaxBackoffDuration time.Duration `json:"max_backoff_duration"` // Maximum backoff time
}

// DefaultConfig returns sensible defaults for circuit breaker
func DefaultConfig() Config {
	return Config{
		FailureThreshold:   2,                // Open circuit after 2 consecutive failures
		BackoffDuration:    30 * time.Second, // Initial 30s backoff
		MaxBackoffDuration: 5 * time.Minute,  // Max 5min backoff
	}
}

// HealthManager manages backend health tracking
type HealthManager struct {
	config      Config
	healthMap   map[string]*BackendHealth
	healthMutex sync.RWMutex
	log         logger.Logger
	now         func() time.Time
}

// NewHealthManager creates a new health manager. A nil logger discards output.
func NewHealthManager(config Config, log logger.Logger) *HealthManager {
	if log == nil {
		log = logger.Nop()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	return &HealthManager{
		config:    config,
		healthMap: make(map[string]*BackendHealth),
		log:       log,
		now:       time.Now,
	}
}

// IsHealthy checks if a backend is available (circuit closed, or its
// backoff has elapsed and it may be tried again)
func (hm *HealthManager) IsHealthy(backend string) bool {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[backend]
	if !exists {
		return true // Unknown backends are assumed healthy
	}

	if health.CircuitOpen {
		return hm.now().After(health.NextRetryTime)
	}
	return true
}

// Health returns a copy of a backend's health record
func (hm *HealthManager) Health(backend string) (BackendHealth, bool) {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[backend]
	if !exists {
		return BackendHealth{Name: backend}, false
	}
	return *health, true
}

// SuccessRate calculates the success rate for a backend
func (hm *HealthManager) SuccessRate(backend string) float64 {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[backend]
	if !exists || health.TotalRequests == 0 {
		return 0.5 // Default neutral rate for new backends
	}

	return float64(health.SuccessCount) / float64(health.TotalRequests)
}
