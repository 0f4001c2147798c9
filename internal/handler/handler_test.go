// internal/handler/handler_test.go
package handler

import (
	"testing"

	"go.viam.com/test"
)

func TestGroupAdd(t *testing.T) {
	g := NewGroup(3, "dxl_3")

	cell, err := g.Add(IfPosition)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cell, test.ShouldNotBeNil)

	_, err = g.Add(IfVelocity)
	test.That(t, err, test.ShouldBeNil)

	_, err = g.Add(IfPosition)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `already has interface "position"`)

	test.That(t, g.Len(), test.ShouldEqual, 2)
	test.That(t, g.Index(IfVelocity), test.ShouldEqual, 1)
	test.That(t, g.Index(IfEffort), test.ShouldEqual, -1)
}

func TestGroupCellsAreStable(t *testing.T) {
	g := NewGroup(0, "joint1")
	first, err := g.Add(IfPosition)
	test.That(t, err, test.ShouldBeNil)
	for _, iface := range []string{IfVelocity, IfEffort, IfHardwareState, IfTorqueEnable} {
		_, err := g.Add(iface)
		test.That(t, err, test.ShouldBeNil)
	}

	*first = 1.25
	cell, ok := g.ValueOf(IfPosition)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cell, test.ShouldEqual, first)
	test.That(t, *g.Value(SlotPosition), test.ShouldEqual, 1.25)
}

func TestTableLookup(t *testing.T) {
	tbl := &Table{
		JointStates:   []*Group{NewGroup(0, "joint1"), NewGroup(0, "joint2")},
		JointCommands: []*Group{NewGroup(0, "joint1")},
	}

	g, ok := tbl.JointState("joint2")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.Name, test.ShouldEqual, "joint2")

	_, ok = tbl.JointCommand("joint2")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestInterfaceAllowLists(t *testing.T) {
	test.That(t, ValidStateInterface(IfHardwareState), test.ShouldBeTrue)
	test.That(t, ValidStateInterface("temperature"), test.ShouldBeFalse)
	test.That(t, ValidCommandInterface(IfPosition), test.ShouldBeTrue)
	test.That(t, ValidCommandInterface(IfTorqueEnable), test.ShouldBeFalse)
}
