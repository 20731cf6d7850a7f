package circuitbreaker

import (
	"time"

	"blockstream/logger"
)

func (hm *HealthManager) record(backend string) *BackendHealth {
	health, exists := hm.healthMap[backend]
	if !exists {
		health = &BackendHealth{Name: backend}
		hm.healthMap[backend] = health
	}
	health.TotalRequests++
	return health
}

// RecordFailure marks a backend as failed and potentially opens its circuit
func (hm *HealthManager) RecordFailure(backend string) {
	hm.healthMutex.Lock()
	defer hm.healthMutex.Unlock()

	health := hm.record(backend)
	health.FailureCount++
	health.LastFailureTime = hm.now()

	if health.FailureCount < hm.config.FailureThreshold {
		hm.log.Warn(logger.ComponentBreaker, logger.CategoryWarning, "", "Backend failure recorded", map[string]interface{}{
			"backend":   backend,
			"failures":  health.FailureCount,
			"threshold": hm.config.FailureThreshold,
		})
		return
	}

	// Exponential backoff capped at max
	backoff := hm.config.BackoffDuration
	for i := hm.config.FailureThreshold; i < health.FailureCount; i++ {
		backoff *= 2
		if backoff >= hm.config.MaxBackoffDuration {
			break
		}
	}
	if hm.config.MaxBackoffDuration > 0 && backoff > hm.config.MaxBackoffDuration {
		backoff = hm.config.MaxBackoffDuration
	}

	health.CircuitOpen = true
	health.NextRetryTime = health.LastFailureTime.Add(backoff)

	hm.log.Error(logger.ComponentBreaker, logger.CategoryError, "", "Circuit breaker opened", map[string]interface{}{
		"backend":  backend,
		"failures": health.FailureCount,
		"retry_in": backoff.String(),
	})
}

// RecordSuccess marks a backend as successful and closes its circuit
func (hm *HealthManager) RecordSuccess(backend string) {
	hm.healthMutex.Lock()
	defer hm.healthMutex.Unlock()

	health := hm.record(backend)
	health.SuccessCount++
	health.LastSuccessTime = hm.now()

	if health.CircuitOpen {
		hm.log.Info(logger.ComponentBreaker, logger.CategoryRequest, "", "Circuit breaker closed", map[string]interface{}{
			"backend": backend,
		})
	}
	health.CircuitOpen = false
	health.FailureCount = 0
	health.NextRetryTime = time.Time{}
}
