package main

import (
	"context"
	"net/http"
	"time"

	"hazard-service/internal/common/modelcache"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// readinessCheck is satisfied by the database clients.
type readinessCheck interface {
	Name() string
	Ping(ctx context.Context) error
}

// readyHandler reports ready once at least one model is installed and every
// configured store answers a ping.
func readyHandler(cache *modelcache.Cache, checks []readinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				deps[check.Name()] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[check.Name()] = "ok"
		}

		installed := len(cache.Installed())
		if installed == 0 {
			status = http.StatusServiceUnavailable
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not ready"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"installed":    installed,
			"loaded":       len(cache.Loaded()),
			"dependencies": deps,
			"time":         time.Now().Format(time.RFC3339),
		})
	}
}
