// internal/bridge/status.go
package bridge

import "sync"

// CommStatus is the authoritative communication state of the bus.
type CommStatus int

const (
	StatusNominal CommStatus = iota
	StatusCommError
	StatusHardwareError
	StatusRebooting
)

func (s CommStatus) String() string {
	switch s {
	case StatusNominal:
		return "nominal"
	case StatusCommError:
		return "comm-error"
	case StatusHardwareError:
		return "hardware-error"
	case StatusRebooting:
		return "rebooting"
	}
	return "unknown"
}

// TorqueStatus tracks the torque state machine.
type TorqueStatus int

const (
	TorqueEnabled TorqueStatus = iota
	TorqueDisabled
	TorqueRequestedEnable
	TorqueRequestedDisable
)

func (s TorqueStatus) String() string {
	switch s {
	case TorqueEnabled:
		return "enabled"
	case TorqueDisabled:
		return "disabled"
	case TorqueRequestedEnable:
		return "requested-enable"
	case TorqueRequestedDisable:
		return "requested-disable"
	}
	return "unknown"
}

// Values written into a joint's hardware_state slot by the error check.
const (
	hwStateOK            = 0.0
	hwStateCommError     = 1.0
	hwStateHardwareError = 2.0
)

// DeviceStatus is the per-device slice of a Snapshot.
type DeviceStatus struct {
	HardwareErrorRaw uint8
	Cause            string
	TorqueOn         bool
}

// Snapshot is a point-in-time copy of the bridge state for telemetry.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Comm    CommStatus
	Torque  TorqueStatus
	Devices map[uint8]DeviceStatus
}

// state owns the process-wide comm and torque status. All transitions go
// through its methods; nothing else touches the fields.
type state struct {
	mu sync.Mutex

	comm   CommStatus
	torque TorqueStatus

	hwErrRaw   map[uint8]uint8
	hwErrCause map[uint8]string
	torqueBits map[uint8]bool
}

func newState() *state {
	return &state{
		comm:       StatusNominal,
		torque:     TorqueEnabled,
		hwErrRaw:   map[uint8]uint8{},
		hwErrCause: map[uint8]string{},
		torqueBits: map[uint8]bool{},
	}
}

func (s *state) Comm() CommStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comm
}

func (s *state) setComm(c CommStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comm = c
}

func (s *state) Torque() TorqueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torque
}

// requestTorque arms a torque transition for the next write tick.
func (s *state) requestTorque(enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enable {
		s.torque = TorqueRequestedEnable
	} else {
		s.torque = TorqueRequestedDisable
	}
}

// resolveTorque collapses the torque status from device-reported bits:
// Enabled only when every actuator reports enabled.
func (s *state) resolveTorque(bits map[uint8]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, on := range bits {
		s.torqueBits[id] = on
	}
	for _, on := range bits {
		if !on {
			s.torque = TorqueDisabled
			return
		}
	}
	s.torque = TorqueEnabled
}

// recordHardwareError stores one device's decoded error byte and cause string.
func (s *state) recordHardwareError(id uint8, raw uint8, cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hwErrRaw[id] = raw
	s.hwErrCause[id] = cause
}

func (s *state) clearHardwareError(id uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hwErrRaw[id] = 0
	s.hwErrCause[id] = ""
}

// snapshot copies the full state for telemetry.
func (s *state) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make(map[uint8]DeviceStatus, len(s.hwErrRaw))
	for id, raw := range s.hwErrRaw {
		devices[id] = DeviceStatus{
			HardwareErrorRaw: raw,
			Cause:            s.hwErrCause[id],
			TorqueOn:         s.torqueBits[id],
		}
	}
	for id, on := range s.torqueBits {
		if _, ok := devices[id]; !ok {
			devices[id] = DeviceStatus{TorqueOn: on}
		}
	}

	return Snapshot{Comm: s.comm, Torque: s.torque, Devices: devices}
}
