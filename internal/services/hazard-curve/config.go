// internal/services/hazard-curve/config.go
package hazardcurve

import (
	"time"

	"hazard-service/internal/common/config"
)

type Config struct {
	ComputeTimeout time.Duration
	RegionOverride bool
	CheckBounds    bool
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		ComputeTimeout: config.GetDuration(cfg.Pool.ComputeTimeout),
		RegionOverride: cfg.Models.RegionOverride,
		CheckBounds:    true,
	}
}

func (c *Config) requestOptions() Options {
	return Options{
		RegionOverride: c.RegionOverride,
		CheckBounds:    c.CheckBounds,
	}
}
