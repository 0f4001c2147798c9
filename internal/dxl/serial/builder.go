// internal/dxl/serial/builder.go
package serial

import (
	"github.com/edaniels/golog"

	cfg "github.com/openroboworks/dxlbridge/internal/config"
)

// Build constructs an unconnected client from bridge configuration, merging
// per-device control-table overrides. The caller owns Connect/Close.
func Build(logger golog.Logger, b *cfg.BridgeConfig) *Client {
	overrides := map[uint8]ControlTable{}
	for _, d := range b.Devices {
		if len(d.ControlTable) == 0 {
			continue
		}
		t := ControlTable{}
		for _, it := range d.ControlTable {
			t[it.Name] = ControlItem{Addr: it.Address, Size: it.Size}
		}
		overrides[d.ID] = t
	}

	return New(logger, Options{
		Timeout:   defaultTimeout,
		Overrides: overrides,
	})
}
