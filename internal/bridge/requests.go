// internal/bridge/requests.go
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/openroboworks/dxlbridge/internal/dxl"
)

// Async request defaults (see SetTorque and GetItem).
const (
	defaultGetTimeout = time.Second
	torquePollBudget  = time.Second
	torquePollEvery   = 50 * time.Millisecond
)

type itemKey struct {
	id   uint8
	name string
}

// pendingRead is one in-flight get request. done closes once the read cycle
// fills value/err. A duplicate request for the same key replaces the entry;
// the superseded waiter times out (last writer wins).
type pendingRead struct {
	done  chan struct{}
	value float64
	err   error
}

// requestBuffer carries requests between external callers and the cyclic
// orchestrator. The mutex covers only map access; all bus I/O happens outside
// it.
type requestBuffer struct {
	mu     sync.Mutex
	reads  map[itemKey]*pendingRead
	writes map[itemKey]float64
}

func newRequestBuffer() *requestBuffer {
	return &requestBuffer{
		reads:  map[itemKey]*pendingRead{},
		writes: map[itemKey]float64{},
	}
}

// enqueueRead registers a pending get request, replacing any prior one for
// the same key.
func (b *requestBuffer) enqueueRead(key itemKey) *pendingRead {
	pr := &pendingRead{done: make(chan struct{})}
	b.mu.Lock()
	b.reads[key] = pr
	b.mu.Unlock()
	return pr
}

// enqueueWrite registers a pending set request. Last writer wins per key.
func (b *requestBuffer) enqueueWrite(key itemKey, value float64) {
	b.mu.Lock()
	b.writes[key] = value
	b.mu.Unlock()
}

// drainReads services every pending get request against the bus and wakes
// the waiters. Called once per read tick.
func (b *requestBuffer) drainReads(bus dxl.Bus) {
	b.mu.Lock()
	if len(b.reads) == 0 {
		b.mu.Unlock()
		return
	}
	taken := b.reads
	b.reads = map[itemKey]*pendingRead{}
	b.mu.Unlock()

	for key, pr := range taken {
		pr.value, pr.err = bus.ReadItem(key.id, key.name)
		close(pr.done)
	}
}

// applyWrites pushes every pending set request to the bus. Called once per
// write tick, before the batched write.
func (b *requestBuffer) applyWrites(bus dxl.Bus, logger golog.Logger) {
	b.mu.Lock()
	if len(b.writes) == 0 {
		b.mu.Unlock()
		return
	}
	taken := b.writes
	b.writes = map[itemKey]float64{}
	b.mu.Unlock()

	for key, value := range taken {
		if err := bus.WriteItem(key.id, key.name, value); err != nil {
			logger.Errorw("buffered item write failed",
				"id", key.id, "item", key.name, "error", err)
		}
	}
}

// clear drops all pending requests. Waiting getters fail with reason.
func (b *requestBuffer) clear(reason error) {
	b.mu.Lock()
	taken := b.reads
	b.reads = map[itemKey]*pendingRead{}
	b.writes = map[itemKey]float64{}
	b.mu.Unlock()

	for _, pr := range taken {
		pr.err = reason
		close(pr.done)
	}
}

// GetItem reads one device item out of band. The value is produced by the
// next read tick; the call blocks up to timeout (default 1s). The item must
// belong to the device's configured read set.
func (b *Bridge) GetItem(ctx context.Context, id uint8, name string, timeout time.Duration) (float64, error) {
	if !b.readable[itemKey{id, name}] {
		return 0, errors.Wrapf(dxl.ErrUnknownItem, "get id=%d item=%q", id, name)
	}
	if timeout <= 0 {
		timeout = defaultGetTimeout
	}

	pr := b.req.enqueueRead(itemKey{id, name})

	select {
	case <-pr.done:
		return pr.value, pr.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(timeout):
		return 0, errors.Wrapf(ErrRequestTimeout, "get id=%d item=%q after %v", id, name, timeout)
	}
}

// SetItem queues one device item write for the next write tick and returns
// immediately. The item must belong to the device's configured write surface.
func (b *Bridge) SetItem(id uint8, name string, value float64) error {
	if !b.writable[itemKey{id, name}] {
		return errors.Wrapf(dxl.ErrUnknownItem, "set id=%d item=%q", id, name)
	}
	b.req.enqueueWrite(itemKey{id, name}, value)
	return nil
}

// Reboot runs the recovery procedure. A second call while one is in progress
// is rejected with ErrRebootInProgress.
func (b *Bridge) Reboot(ctx context.Context) error {
	if !b.rebooting.CompareAndSwap(false, true) {
		return ErrRebootInProgress
	}
	defer b.rebooting.Store(false)
	return b.commReset(ctx)
}

// SetTorque requests a torque transition and waits for the write cycle to
// resolve it. Requesting the current steady state succeeds immediately.
// Resolving to the opposite terminal state is an explicit failure, distinct
// from a timeout.
func (b *Bridge) SetTorque(ctx context.Context, enable bool) (string, error) {
	switch st := b.state.Torque(); {
	case enable && st == TorqueEnabled:
		return "already enabled", nil
	case !enable && st == TorqueDisabled:
		return "already disabled", nil
	}

	b.state.requestTorque(enable)

	deadline := time.Now().Add(torquePollBudget)
	for time.Now().Before(deadline) {
		if !goutils.SelectContextOrWait(ctx, torquePollEvery) {
			return "", ctx.Err()
		}
		switch b.state.Torque() {
		case TorqueEnabled:
			if enable {
				return "torque enabled", nil
			}
			return "", errors.New("bridge: torque resolved to enabled, wanted disabled")
		case TorqueDisabled:
			if !enable {
				return "torque disabled", nil
			}
			return "", errors.New("bridge: torque resolved to disabled, wanted enabled")
		}
	}

	return "", errors.Wrap(ErrRequestTimeout, "torque request not consumed; write cycle not running")
}
