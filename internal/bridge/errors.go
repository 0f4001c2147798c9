// internal/bridge/errors.go
package bridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors for the bridge's failure taxonomy. Callers match with
// errors.Is.
var (
	// ErrConfiguration marks malformed or inconsistent setup input. Fatal,
	// no retry.
	ErrConfiguration = errors.New("bridge: configuration error")

	// ErrRebooting is returned by ticks while a recovery is running.
	ErrRebooting = errors.New("bridge: rebooting")

	// ErrRequestTimeout marks an async request that exceeded its bound. It
	// affects only the requesting caller.
	ErrRequestTimeout = errors.New("bridge: request timeout")

	// ErrRebootFailed marks a recovery that exhausted its deadline.
	ErrRebootFailed = errors.New("bridge: reboot failed")

	// ErrRebootInProgress rejects a reboot request while another one runs.
	ErrRebootInProgress = errors.New("bridge: reboot already in progress")
)

// HardwareFault reports decoded device error bits. It clears only through the
// recovery procedure.
type HardwareFault struct {
	// Causes maps device id to its human-readable cause string.
	Causes map[uint8]string
}

func (e *HardwareFault) Error() string {
	ids := make([]int, 0, len(e.Causes))
	for id := range e.Causes {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var sb strings.Builder
	sb.WriteString("bridge: hardware fault")
	for _, id := range ids {
		fmt.Fprintf(&sb, " [id %d: %s]", id, e.Causes[uint8(id)])
	}
	return sb.String()
}
