// internal/config/normalize.go
package config

import "fmt"

// Defaults applied by Normalize.
const (
	DefaultTickRateHz      = 100
	DefaultErrorTimeoutSec = 3.0
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Bridge

	if b.TickRateHz <= 0 {
		b.TickRateHz = DefaultTickRateHz
	}
	if b.ErrorTimeoutSec <= 0 {
		b.ErrorTimeoutSec = DefaultErrorTimeoutSec
	}

	// Devices without a name get a stable id-derived one.
	for i := range b.Devices {
		d := &b.Devices[i]
		if d.Name == "" {
			d.Name = fmt.Sprintf("dxl_%d", d.ID)
		}
	}
}
