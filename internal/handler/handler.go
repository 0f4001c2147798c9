// internal/handler/handler.go
package handler

import "github.com/pkg/errors"

// Joint interface names exposed to the host framework.
const (
	IfPosition     = "position"
	IfVelocity     = "velocity"
	IfAcceleration = "acceleration"
	IfEffort       = "effort"
	IfHardwareState = "hardware_state"
	IfTorqueEnable  = "torque_enable"
)

// Fixed slot order for the quantities the transmission mapper tracks.
// Joint state groups and transmission state groups both honor it.
const (
	SlotPosition = 0
	SlotVelocity = 1
	SlotEffort   = 2
)

// ValidStateInterface reports whether a joint may request name as a state
// interface.
func ValidStateInterface(name string) bool {
	switch name {
	case IfPosition, IfVelocity, IfAcceleration, IfEffort, IfHardwareState, IfTorqueEnable:
		return true
	}
	return false
}

// ValidCommandInterface reports whether a joint may request name as a command
// interface.
func ValidCommandInterface(name string) bool {
	switch name {
	case IfPosition, IfVelocity, IfAcceleration, IfEffort:
		return true
	}
	return false
}

// Group is one named collection of value slots: a joint, a transmission, or a
// sensor. Slots are allocated once and never move; readers and writers share
// the same float64 cells for the life of the group.
type Group struct {
	ID   uint8
	Name string

	ifaces []string
	values []*float64
}

// NewGroup creates an empty group. id is the device id for transmission and
// sensor groups and zero for joint groups.
func NewGroup(id uint8, name string) *Group {
	return &Group{ID: id, Name: name}
}

// Add allocates a slot for iface and returns its cell.
// Interface names are unique within one group.
func (g *Group) Add(iface string) (*float64, error) {
	if g.Has(iface) {
		return nil, errors.Errorf("handler: group %q already has interface %q", g.Name, iface)
	}
	v := new(float64)
	g.ifaces = append(g.ifaces, iface)
	g.values = append(g.values, v)
	return v, nil
}

// Has reports whether iface has a slot in this group.
func (g *Group) Has(iface string) bool {
	return g.Index(iface) >= 0
}

// Index returns the slot index of iface, or -1.
func (g *Group) Index(iface string) int {
	for i, n := range g.ifaces {
		if n == iface {
			return i
		}
	}
	return -1
}

// Value returns the cell at slot i.
func (g *Group) Value(i int) *float64 {
	return g.values[i]
}

// ValueOf returns the cell bound to iface.
func (g *Group) ValueOf(iface string) (*float64, bool) {
	i := g.Index(iface)
	if i < 0 {
		return nil, false
	}
	return g.values[i], true
}

// Interfaces returns the slot names in allocation order.
func (g *Group) Interfaces() []string {
	return g.ifaces
}

// Values returns the cells in allocation order.
func (g *Group) Values() []*float64 {
	return g.values
}

// Len returns the number of slots.
func (g *Group) Len() int {
	return len(g.ifaces)
}

// Table is the full handler table built at setup: one group set per external
// entity kind.
type Table struct {
	TransStates   []*Group
	TransCommands []*Group
	JointStates   []*Group
	JointCommands []*Group
	SensorStates  []*Group
}

// JointState returns the joint state group with the given name.
func (t *Table) JointState(name string) (*Group, bool) {
	return findGroup(t.JointStates, name)
}

// JointCommand returns the joint command group with the given name.
func (t *Table) JointCommand(name string) (*Group, bool) {
	return findGroup(t.JointCommands, name)
}

func findGroup(groups []*Group, name string) (*Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}
