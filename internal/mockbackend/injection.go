package mockbackend

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/itsneelabh/storefront/core"
)

// Fault injection modes.
const (
	ModeNormal      = "normal"
	ModeRateLimit   = "rate_limit"
	ModeServerError = "server_error"
)

// FaultConfig controls the errors the backend injects so the client's
// circuit breaker and error surfaces can be exercised.
type FaultConfig struct {
	Mode            string  `json:"mode"`
	RateLimitAfter  int     `json:"rate_limit_after,omitempty"`
	ServerErrorRate float64 `json:"server_error_rate,omitempty"`
	RetryAfterSecs  int     `json:"retry_after_secs,omitempty"`
}

// Injector is fault injection middleware with its own state, so servers in
// the same process do not share a mode.
type Injector struct {
	mu       sync.RWMutex
	config   FaultConfig
	requests atomic.Int64
	logger   core.Logger
}

// NewInjector starts in normal mode.
func NewInjector(logger core.Logger) *Injector {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Injector{
		config: FaultConfig{Mode: ModeNormal, RateLimitAfter: 5, RetryAfterSecs: 5},
		logger: logger,
	}
}

// Config returns the current settings.
func (i *Injector) Config() FaultConfig {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.config
}

// Set replaces the mode and resets the request count. Zero or out of range
// values keep the previous setting.
func (i *Injector) Set(cfg FaultConfig) error {
	switch cfg.Mode {
	case ModeNormal, ModeRateLimit, ModeServerError:
	default:
		return fmt.Errorf("invalid mode %q, use: normal, rate_limit or server_error", cfg.Mode)
	}

	i.mu.Lock()
	i.config.Mode = cfg.Mode
	if cfg.RateLimitAfter > 0 {
		i.config.RateLimitAfter = cfg.RateLimitAfter
	}
	if cfg.ServerErrorRate >= 0 && cfg.ServerErrorRate <= 1 {
		i.config.ServerErrorRate = cfg.ServerErrorRate
	}
	if cfg.RetryAfterSecs > 0 {
		i.config.RetryAfterSecs = cfg.RetryAfterSecs
	}
	current := i.config
	i.mu.Unlock()

	i.requests.Store(0)
	i.logger.Info("Fault injection updated", map[string]interface{}{
		"mode":              current.Mode,
		"rate_limit_after":  current.RateLimitAfter,
		"server_error_rate": current.ServerErrorRate,
	})
	return nil
}

// Reset returns to normal mode.
func (i *Injector) Reset() {
	i.mu.Lock()
	i.config.Mode = ModeNormal
	i.config.ServerErrorRate = 0
	i.mu.Unlock()
	i.requests.Store(0)
	i.logger.Info("Fault injection reset", nil)
}

// Middleware injects the configured faults. /admin and /health are never
// affected.
func (i *Injector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/admin") || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		cfg := i.Config()
		switch cfg.Mode {
		case ModeRateLimit:
			count := i.requests.Add(1)
			if int(count) > cfg.RateLimitAfter {
				i.logger.Debug("Injecting rate limit", map[string]interface{}{
					"requests": count,
					"limit":    cfg.RateLimitAfter,
				})
				w.Header().Set("Retry-After", fmt.Sprintf("%d", cfg.RetryAfterSecs))
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"message": "Rate limit exceeded",
					"code":    "RATE_LIMIT_EXCEEDED",
				})
				return
			}
		case ModeServerError:
			if rand.Float64() < cfg.ServerErrorRate {
				i.logger.Debug("Injecting server error", map[string]interface{}{
					"rate": cfg.ServerErrorRate,
				})
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"message": "Internal server error (simulated)",
					"code":    "INTERNAL_SERVER_ERROR",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (i *Injector) handleInject(w http.ResponseWriter, r *http.Request) {
	var cfg FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := i.Set(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Fault injection mode set to '%s'", cfg.Mode),
		"config":  i.Config(),
	})
}

func (i *Injector) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := i.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":              cfg.Mode,
		"rate_limit_after":  cfg.RateLimitAfter,
		"server_error_rate": cfg.ServerErrorRate,
		"retry_after_secs":  cfg.RetryAfterSecs,
		"request_count":     i.requests.Load(),
	})
}

func (i *Injector) handleReset(w http.ResponseWriter, r *http.Request) {
	i.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Fault injection reset to normal mode",
		"config":  i.Config(),
	})
}
