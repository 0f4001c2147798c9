// cmd/dxlbridge/main.go
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/openroboworks/dxlbridge/internal/bridge"
	"github.com/openroboworks/dxlbridge/internal/config"
	"github.com/openroboworks/dxlbridge/internal/dxl/serial"
)

var logger = golog.NewDevelopmentLogger("dxlbridge")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	if len(args) < 2 {
		return errors.New("usage: dxlbridge <config.yaml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(args[1])
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	config.Normalize(cfg)

	// --------------------
	// Build bus + bridge
	// --------------------

	bus := serial.Build(logger, &cfg.Bridge)
	defer func() {
		goutils.UncheckedError(bus.Close())
	}()

	br, err := bridge.New(logger, &cfg.Bridge, bus)
	if err != nil {
		return err
	}

	if err := br.Setup(ctx); err != nil {
		return err
	}
	if err := br.Start(ctx); err != nil {
		return err
	}
	defer func() {
		goutils.UncheckedError(br.Stop())
	}()

	// --------------------
	// Cyclic read/write loop + 1Hz status log
	// --------------------

	tick := time.Second / time.Duration(cfg.Bridge.TickRateHz)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if err := br.ReadTick(); err != nil {
				logger.Debugw("read tick", "error", err)
			}
			if err := br.WriteTick(); err != nil {
				logger.Debugw("write tick", "error", err)
			}

		case <-statusTicker.C:
			snap := br.Status()
			logger.Infow("bridge status",
				"comm", snap.Comm.String(),
				"torque", snap.Torque.String(),
				"devices", len(snap.Devices))
		}
	}
}
