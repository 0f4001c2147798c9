// internal/bridge/recovery.go
package bridge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// commReset is the recovery procedure: stop output, drop every transport
// registration and pending request, then retry reboot plus full
// reinitialization until the error-timeout deadline. The cycle resumes
// whether or not recovery succeeds.
func (b *Bridge) commReset(ctx context.Context) error {
	b.state.setComm(StatusRebooting)
	if err := b.Stop(); err != nil {
		b.logger.Errorw("torque disable during reset", "error", err)
	}

	b.logger.Info("communication reset start")
	b.req.clear(errors.Wrap(ErrRebooting, "pending request dropped"))
	b.bus.ResetTransport()

	deadline := time.Now().Add(b.errTimeout)
	for time.Now().Before(deadline) {
		if !goutils.SelectContextOrWait(ctx, b.rebootBackoff) {
			b.state.setComm(StatusCommError)
			return ctx.Err()
		}

		if !b.rebootAll(ctx) {
			continue
		}
		if err := b.initItems(); err != nil {
			b.logger.Errorw("reinit items", "error", err)
			continue
		}
		if err := b.initReadItems(); err != nil {
			b.logger.Errorw("reinit read set", "error", err)
			continue
		}
		if err := b.initWriteItems(); err != nil {
			b.logger.Errorw("reinit write set", "error", err)
			continue
		}

		b.logger.Info("communication reset success")
		goutils.SelectContextOrWait(ctx, b.settleTime)
		if err := b.Start(ctx); err != nil {
			b.logger.Errorw("restart after reset", "error", err)
		}
		b.state.setComm(StatusNominal)
		return nil
	}

	// Deadline exhausted: resume best-effort and let the next read decide
	// the status.
	b.logger.Error("communication reset failure")
	goutils.SelectContextOrWait(ctx, b.settleTime)
	b.state.setComm(StatusCommError)
	if err := b.Start(ctx); err != nil {
		b.logger.Errorw("restart after failed reset", "error", err)
	}
	return errors.Wrapf(ErrRebootFailed, "deadline %v exhausted", b.errTimeout)
}

// rebootAll reboots every actuator, failing fast on the first rejection.
func (b *Bridge) rebootAll(ctx context.Context) bool {
	for _, id := range b.actuatorIDs {
		if err := b.bus.Reboot(id); err != nil {
			b.logger.Errorw("device reboot failed", "id", id, "error", err)
			return false
		}
		if !goutils.SelectContextOrWait(ctx, b.rebootBackoff) {
			return false
		}
	}
	return true
}
