// internal/bridge/bridge.go

// Package bridge drives a chain of networked actuators and exposes them as
// abstract joints with position/velocity/effort state and command slots. It
// owns the cyclic read/write orchestration, the communication and torque
// state machines, the recovery procedure and the asynchronous request bridge.
package bridge

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	cfg "github.com/openroboworks/dxlbridge/internal/config"
	"github.com/openroboworks/dxlbridge/internal/dxl"
	"github.com/openroboworks/dxlbridge/internal/handler"
	"github.com/openroboworks/dxlbridge/internal/transmission"
)

// Fixed pacing inside setup, start and recovery.
const (
	connectRetryEvery = time.Second
	startSettleTime   = 500 * time.Millisecond
	rebootRetryEvery  = 200 * time.Millisecond
	recoverySettle    = time.Second
)

// errorBit is one decodable hardware-error bit.
type errorBit struct {
	mask  uint8
	cause string
}

// defaultErrorBits mirrors the vendor register sheet. Two of the masks are
// multi-bit; deployments with a corrected sheet override the table through
// configuration.
func defaultErrorBits() []errorBit {
	return []errorBit{
		{0x01, "input voltage error"},
		{0x04, "overheating"},
		{0x08, "motor encoder"},
		{0x16, "electrical shock"},
		{0x32, "overload"},
	}
}

// Slot is one exported state or command cell: entity name, interface name and
// the shared float64 the host framework binds to.
type Slot struct {
	Entity    string
	Interface string
	Value     *float64
}

// Bridge is the hardware interface core. Construct with New, then Setup,
// then drive ReadTick/WriteTick at the host's cadence.
type Bridge struct {
	logger golog.Logger
	conf   cfg.BridgeConfig

	bus    dxl.Bus
	mapper *transmission.Mapper
	table  *handler.Table

	actuatorIDs []uint8
	allIDs      []uint8

	state *state
	req   *requestBuffer

	rebooting atomic.Bool

	errorBits  []errorBit
	errTimeout time.Duration

	// recovery pacing, overridable in tests
	rebootBackoff time.Duration
	settleTime    time.Duration
	startSettle   time.Duration

	// per-key request surfaces derived from configuration
	readable map[itemKey]bool
	writable map[itemKey]bool
}

// New builds the handler table and the transmission mapper from
// configuration. It performs no I/O. Any inconsistency fails with
// ErrConfiguration.
func New(logger golog.Logger, conf *cfg.BridgeConfig, bus dxl.Bus) (*Bridge, error) {
	mapper, err := transmission.NewMapper(
		conf.TransmissionToJointMatrix, conf.JointToTransmissionMatrix,
		conf.NumJoints, conf.NumTransmissions)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "%v", err)
	}

	b := &Bridge{
		logger:     logger,
		conf:       *conf,
		bus:        bus,
		mapper:     mapper,
		state:      newState(),
		req:        newRequestBuffer(),
		errorBits:  defaultErrorBits(),
		errTimeout: time.Duration(conf.ErrorTimeoutSec * float64(time.Second)),
		readable:   map[itemKey]bool{},
		writable:   map[itemKey]bool{},

		rebootBackoff: rebootRetryEvery,
		settleTime:    recoverySettle,
		startSettle:   startSettleTime,
	}
	if b.errTimeout <= 0 {
		b.errTimeout = time.Duration(cfg.DefaultErrorTimeoutSec * float64(time.Second))
	}
	if len(conf.HardwareErrorBits) > 0 {
		b.errorBits = nil
		for _, eb := range conf.HardwareErrorBits {
			b.errorBits = append(b.errorBits, errorBit{mask: eb.Mask, cause: eb.Cause})
		}
	}

	if err := b.buildTable(); err != nil {
		return nil, err
	}
	return b, nil
}

// buildTable constructs the five handler group sets and the request surfaces.
func (b *Bridge) buildTable() error {
	t := &handler.Table{}

	// ---- TRANSMISSIONS ----

	for _, d := range b.conf.Actuators() {
		st := handler.NewGroup(d.ID, d.Name)

		// Position and velocity always occupy the first two slots, the
		// effort item the third, so the mapper indices stay stable.
		ordered := []string{dxl.ItemPresentPosition, dxl.ItemPresentVelocity}
		for _, it := range d.StateItems {
			if it == dxl.ItemPresentCurrent || it == dxl.ItemPresentLoad {
				ordered = append(ordered, it)
			}
		}
		for _, it := range d.StateItems {
			switch it {
			case dxl.ItemPresentPosition, dxl.ItemPresentVelocity,
				dxl.ItemPresentCurrent, dxl.ItemPresentLoad:
			default:
				ordered = append(ordered, it)
			}
		}
		for _, it := range ordered {
			if _, err := st.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
			b.readable[itemKey{d.ID, it}] = true
		}
		t.TransStates = append(t.TransStates, st)

		cmd := handler.NewGroup(d.ID, d.Name)
		for _, it := range d.CommandItems {
			if _, err := cmd.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
			b.writable[itemKey{d.ID, it}] = true
		}
		t.TransCommands = append(t.TransCommands, cmd)

		for name := range d.InitItems {
			b.writable[itemKey{d.ID, name}] = true
		}
		b.actuatorIDs = append(b.actuatorIDs, d.ID)
		b.allIDs = append(b.allIDs, d.ID)
	}

	// ---- JOINTS ----

	for _, j := range b.conf.Joints {
		st := handler.NewGroup(0, j.Name)
		for _, it := range []string{handler.IfPosition, handler.IfVelocity, handler.IfEffort} {
			if _, err := st.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
		}
		for _, it := range j.StateInterfaces {
			if !handler.ValidStateInterface(it) {
				return errors.Wrapf(ErrConfiguration, "joint %q: unsupported state interface %q", j.Name, it)
			}
			switch it {
			case handler.IfPosition, handler.IfVelocity, handler.IfEffort:
				continue
			}
			if _, err := st.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
		}
		t.JointStates = append(t.JointStates, st)

		cmd := handler.NewGroup(0, j.Name)
		for _, it := range j.CommandInterfaces {
			if !handler.ValidCommandInterface(it) {
				return errors.Wrapf(ErrConfiguration, "joint %q: unsupported command interface %q", j.Name, it)
			}
			if _, err := cmd.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
		}
		t.JointCommands = append(t.JointCommands, cmd)
	}

	// ---- SENSORS ----

	for _, d := range b.conf.Sensors() {
		g := handler.NewGroup(d.ID, d.Name)
		for _, it := range d.StateItems {
			if _, err := g.Add(it); err != nil {
				return errors.Wrapf(ErrConfiguration, "%v", err)
			}
			b.readable[itemKey{d.ID, it}] = true
		}
		t.SensorStates = append(t.SensorStates, g)

		for name := range d.InitItems {
			b.writable[itemKey{d.ID, name}] = true
		}
		b.allIDs = append(b.allIDs, d.ID)
	}

	if len(t.TransStates) != b.conf.NumTransmissions || len(t.TransCommands) != b.conf.NumTransmissions {
		return errors.Wrapf(ErrConfiguration,
			"number_of_transmissions is %d but built %d state and %d command groups",
			b.conf.NumTransmissions, len(t.TransStates), len(t.TransCommands))
	}
	if len(t.JointStates) != b.conf.NumJoints || len(t.JointCommands) != b.conf.NumJoints {
		return errors.Wrapf(ErrConfiguration,
			"number_of_joints is %d but built %d state and %d command groups",
			b.conf.NumJoints, len(t.JointStates), len(t.JointCommands))
	}

	b.table = t
	return nil
}

// Setup connects the bus and initializes device items and the read/write
// sets. It retries the initial connection until ctx is done.
func (b *Bridge) Setup(ctx context.Context) error {
	b.logger.Infow("opening actuator bus",
		"port", b.conf.PortName, "baud", b.conf.BaudRate, "devices", len(b.allIDs))

	for {
		err := b.bus.Connect(b.allIDs, b.conf.PortName, b.conf.BaudRate)
		if err == nil {
			break
		}
		b.logger.Errorw("bus connect failed, retrying", "error", err)
		if !goutils.SelectContextOrWait(ctx, connectRetryEvery) {
			return errors.Wrap(ctx.Err(), "bridge: connect")
		}
	}

	if err := b.initItems(); err != nil {
		return err
	}
	if err := b.initReadItems(); err != nil {
		return err
	}
	if err := b.initWriteItems(); err != nil {
		return err
	}

	b.state.setComm(StatusNominal)
	return nil
}

// initItems writes every configured initial item value to its device.
func (b *Bridge) initItems() error {
	for _, d := range b.conf.Devices {
		for name, value := range d.InitItems {
			if err := b.bus.WriteItem(d.ID, name, value); err != nil {
				return errors.Wrapf(err, "bridge: init item %q on id %d", name, d.ID)
			}
			b.logger.Infow("init item", "id", d.ID, "item", name, "value", value)
		}
	}
	return nil
}

// initReadItems registers the per-tick read set: every transmission state
// slot, bound to its cell. Sensors are read by name each tick instead.
func (b *Bridge) initReadItems() error {
	for _, g := range b.table.TransStates {
		if err := b.bus.SetReadItems(g.ID, g.Interfaces(), g.Values()); err != nil {
			return errors.Wrapf(err, "bridge: read set for id %d", g.ID)
		}
	}
	return errors.Wrap(b.bus.CommitReadSet(), "bridge: commit read set")
}

// initWriteItems registers the per-tick write set: every transmission
// command slot, bound to its cell.
func (b *Bridge) initWriteItems() error {
	for _, g := range b.table.TransCommands {
		if g.Len() == 0 {
			continue
		}
		if err := b.bus.SetWriteItems(g.ID, g.Interfaces(), g.Values()); err != nil {
			return errors.Wrapf(err, "bridge: write set for id %d", g.ID)
		}
	}
	return errors.Wrap(b.bus.CommitWriteSet(), "bridge: commit write set")
}

// Start reads the present state, aligns joint commands with it and enables
// torque. Resuming from a stale command snapshot would snap the mechanism.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.checkError(b.bus.BatchedRead()); err != nil {
		return errors.Wrap(err, "bridge: start")
	}
	b.mapper.ToJoint(b.table.TransStates, b.table.JointStates)
	b.syncJointCommands()

	goutils.SelectContextOrWait(ctx, b.startSettle)

	if err := b.bus.EnableTorque(b.actuatorIDs); err != nil {
		b.logger.Errorw("torque enable on start", "error", err)
	}
	b.logger.Info("bridge started")
	return nil
}

// Stop disables torque on every actuator.
func (b *Bridge) Stop() error {
	err := b.bus.DisableTorque(b.actuatorIDs)
	b.logger.Info("bridge stopped")
	return err
}

// ReadTick is one read-side cycle: batched read plus error classification,
// transmission-to-joint mapping, sensor reads, and draining of pending get
// requests.
func (b *Bridge) ReadTick() error {
	switch b.state.Comm() {
	case StatusRebooting:
		return ErrRebooting
	case StatusNominal, StatusCommError:
		if err := b.checkError(b.bus.BatchedRead()); err != nil {
			b.logger.Errorw("read cycle failed", "error", err)
			return err
		}
	case StatusHardwareError:
		// Best-effort reads: a faulted device may still answer.
		if err := b.checkError(b.bus.BatchedRead()); err != nil {
			b.logger.Errorw("read cycle failed in hardware-error state", "error", err)
		}
	}

	b.mapper.ToJoint(b.table.TransStates, b.table.JointStates)
	b.readSensors()
	b.req.drainReads(b.bus)
	return nil
}

// WriteTick is one write-side cycle: pending buffered writes, the torque
// state machine, joint-to-transmission mapping and the batched write.
// Writes are rejected while in comm-error or rebooting state.
func (b *Bridge) WriteTick() error {
	switch st := b.state.Comm(); st {
	case StatusNominal, StatusHardwareError:
	default:
		return errors.Errorf("bridge: write rejected in %s state", st)
	}

	b.req.applyWrites(b.bus, b.logger)
	b.stepTorque()
	b.mapper.ToTransmission(b.table.JointCommands, b.table.TransCommands)

	if err := b.bus.BatchedWrite(); err != nil {
		b.logger.Errorw("batched write failed", "error", err)
		return err
	}
	return nil
}

// checkError classifies one read outcome, drives the comm status machine and
// stamps every joint's hardware_state slot with the result.
func (b *Bridge) checkError(readErr error) error {
	var outcome error
	hwState := hwStateOK

	if readErr != nil {
		b.state.setComm(StatusCommError)
		hwState = hwStateCommError
		outcome = errors.Wrap(readErr, "communication fail")
	} else {
		causes := map[uint8]string{}
		for _, g := range b.table.TransStates {
			idx := g.Index(dxl.ItemHardwareErrorStatus)
			if idx < 0 {
				continue
			}
			raw := uint8(*g.Value(idx))
			cause := b.decodeErrorBits(raw)
			b.state.recordHardwareError(g.ID, raw, cause)
			if cause != "" {
				causes[g.ID] = cause
				b.logger.Warnw("hardware error bits set",
					"id", g.ID, "raw", raw, "cause", cause)
			}
		}
		if len(causes) > 0 {
			b.state.setComm(StatusHardwareError)
			hwState = hwStateHardwareError
			outcome = &HardwareFault{Causes: causes}
		} else {
			b.state.setComm(StatusNominal)
		}
	}

	for _, g := range b.table.JointStates {
		if cell, ok := g.ValueOf(handler.IfHardwareState); ok {
			*cell = hwState
		}
	}
	return outcome
}

// decodeErrorBits renders the cause string for one raw error byte.
func (b *Bridge) decodeErrorBits(raw uint8) string {
	if raw == 0 {
		return ""
	}
	var sb strings.Builder
	for _, eb := range b.errorBits {
		if raw&eb.mask != 0 {
			sb.WriteString(eb.cause)
			sb.WriteString("/ ")
		}
	}
	return strings.TrimSuffix(sb.String(), " ")
}

// stepTorque consumes a requested torque transition, resyncs commands, and
// collapses the status from the device-reported bits.
func (b *Bridge) stepTorque() {
	switch b.state.Torque() {
	case TorqueRequestedEnable:
		b.logger.Info("torque enable requested")
		if err := b.bus.EnableTorque(b.actuatorIDs); err != nil {
			b.logger.Errorw("torque enable", "error", err)
		}
		b.syncJointCommands()
	case TorqueRequestedDisable:
		b.logger.Info("torque disable requested")
		if err := b.bus.DisableTorque(b.actuatorIDs); err != nil {
			b.logger.Errorw("torque disable", "error", err)
		}
		b.syncJointCommands()
	}

	b.state.resolveTorque(b.bus.TorqueStates(b.actuatorIDs))

	torqueOn := 0.0
	if b.state.Torque() == TorqueEnabled {
		torqueOn = 1.0
	}
	for _, g := range b.table.JointStates {
		if cell, ok := g.ValueOf(handler.IfTorqueEnable); ok {
			*cell = torqueOn
		}
	}
}

// syncJointCommands copies each joint's state into its command slots so a
// torque transition resumes from the present state, not a stale command.
func (b *Bridge) syncJointCommands() {
	for _, cmd := range b.table.JointCommands {
		st, ok := b.table.JointState(cmd.Name)
		if !ok {
			continue
		}
		for i, iface := range cmd.Interfaces() {
			from, ok := st.ValueOf(iface)
			if !ok {
				continue
			}
			*cmd.Value(i) = *from
			b.logger.Infow("sync joint command from state",
				"joint", cmd.Name, "interface", iface, "value", *from)
		}
	}
}

// readSensors reads every auxiliary sensor item by name into its slot.
func (b *Bridge) readSensors() {
	for _, g := range b.table.SensorStates {
		for i, iface := range g.Interfaces() {
			v, err := b.bus.ReadItem(g.ID, iface)
			if err != nil {
				b.logger.Debugw("sensor read failed", "id", g.ID, "item", iface, "error", err)
				continue
			}
			*g.Value(i) = v
		}
	}
}

// Status returns a point-in-time state snapshot for telemetry.
func (b *Bridge) Status() Snapshot {
	return b.state.snapshot()
}

// StateInterfaces enumerates every exported state slot: transmissions first,
// then joints, then sensors.
func (b *Bridge) StateInterfaces() []Slot {
	var out []Slot
	for _, set := range [][]*handler.Group{b.table.TransStates, b.table.JointStates, b.table.SensorStates} {
		for _, g := range set {
			for i, iface := range g.Interfaces() {
				out = append(out, Slot{Entity: g.Name, Interface: iface, Value: g.Value(i)})
			}
		}
	}
	return out
}

// CommandInterfaces enumerates every exported command slot: transmissions
// first, then joints.
func (b *Bridge) CommandInterfaces() []Slot {
	var out []Slot
	for _, set := range [][]*handler.Group{b.table.TransCommands, b.table.JointCommands} {
		for _, g := range set {
			for i, iface := range g.Interfaces() {
				out = append(out, Slot{Entity: g.Name, Interface: iface, Value: g.Value(i)})
			}
		}
	}
	return out
}
