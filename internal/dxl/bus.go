// internal/dxl/bus.go
package dxl

import "github.com/pkg/errors"

// Well-known control item names (Protocol 2.0 register names).
const (
	ItemTorqueEnable        = "Torque Enable"
	ItemGoalPosition        = "Goal Position"
	ItemGoalVelocity        = "Goal Velocity"
	ItemGoalCurrent         = "Goal Current"
	ItemPresentPosition     = "Present Position"
	ItemPresentVelocity     = "Present Velocity"
	ItemPresentCurrent      = "Present Current"
	ItemPresentLoad         = "Present Load"
	ItemHardwareErrorStatus = "Hardware Error Status"
	ItemOperatingMode       = "Operating Mode"
	ItemReturnDelayTime     = "Return Delay Time"
	ItemModelNumber         = "Model Number"
)

// ErrCommunication marks a transport-level read or write failure. Callers use
// errors.Is to distinguish it from device-side faults.
var ErrCommunication = errors.New("dxl: communication failure")

// ErrUnknownItem is returned when an item name has no control-table entry or
// is not part of the registered read/write set.
var ErrUnknownItem = errors.New("dxl: unknown control item")

// Bus is the device-communication contract the bridge drives. One Bus spans
// every device on one serial chain.
//
// SetReadItems binds each named item of a device to a destination cell that
// BatchedRead fills; SetWriteItems binds source cells that BatchedWrite
// drains. Commit* finalizes the registered sets. ResetTransport drops all
// registrations so recovery can rebuild them from scratch.
type Bus interface {
	Connect(ids []uint8, port string, baud int) error
	Close() error

	SetReadItems(id uint8, names []string, dests []*float64) error
	CommitReadSet() error
	SetWriteItems(id uint8, names []string, srcs []*float64) error
	CommitWriteSet() error

	BatchedRead() error
	BatchedWrite() error

	ReadItem(id uint8, name string) (float64, error)
	WriteItem(id uint8, name string, value float64) error

	EnableTorque(ids []uint8) error
	DisableTorque(ids []uint8) error
	TorqueStates(ids []uint8) map[uint8]bool

	Reboot(id uint8) error
	ResetTransport()
}
