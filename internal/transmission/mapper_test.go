// internal/transmission/mapper_test.go
package transmission

import (
	"testing"

	"go.viam.com/test"

	"github.com/openroboworks/dxlbridge/internal/dxl"
	"github.com/openroboworks/dxlbridge/internal/handler"
)

func transGroup(t *testing.T, id uint8, name string) *handler.Group {
	t.Helper()
	g := handler.NewGroup(id, name)
	for _, it := range []string{dxl.ItemPresentPosition, dxl.ItemPresentVelocity, dxl.ItemPresentCurrent} {
		_, err := g.Add(it)
		test.That(t, err, test.ShouldBeNil)
	}
	return g
}

func jointStateGroup(t *testing.T, name string) *handler.Group {
	t.Helper()
	g := handler.NewGroup(0, name)
	for _, it := range []string{handler.IfPosition, handler.IfVelocity, handler.IfEffort} {
		_, err := g.Add(it)
		test.That(t, err, test.ShouldBeNil)
	}
	return g
}

func commandGroup(t *testing.T, id uint8, name, iface string) *handler.Group {
	t.Helper()
	g := handler.NewGroup(id, name)
	_, err := g.Add(iface)
	test.That(t, err, test.ShouldBeNil)
	return g
}

func TestParseMatrixBadCount(t *testing.T) {
	_, err := ParseMatrix("1,0,0", 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 4 coefficients")

	_, err = ParseMatrix("1,0,x,1", 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `bad coefficient "x"`)
}

func TestToJointIdentity(t *testing.T) {
	m, err := NewMapper("1,0,0,1", "1,0,0,1", 2, 2)
	test.That(t, err, test.ShouldBeNil)

	trans := []*handler.Group{transGroup(t, 1, "dxl_1"), transGroup(t, 2, "dxl_2")}
	joints := []*handler.Group{jointStateGroup(t, "joint1"), jointStateGroup(t, "joint2")}

	*trans[0].Value(handler.SlotPosition) = 1.57
	*trans[1].Value(handler.SlotPosition) = 0.0

	m.ToJoint(trans, joints)

	test.That(t, *joints[0].Value(handler.SlotPosition), test.ShouldEqual, 1.57)
	test.That(t, *joints[1].Value(handler.SlotPosition), test.ShouldEqual, 0.0)
}

func TestToJointCoupled(t *testing.T) {
	// Differential pair: both joints read both transmissions.
	m, err := NewMapper("0.5,0.5,0.5,-0.5", "1,1,1,-1", 2, 2)
	test.That(t, err, test.ShouldBeNil)

	trans := []*handler.Group{transGroup(t, 1, "a"), transGroup(t, 2, "b")}
	joints := []*handler.Group{jointStateGroup(t, "j1"), jointStateGroup(t, "j2")}

	*trans[0].Value(handler.SlotPosition) = 2.0
	*trans[1].Value(handler.SlotPosition) = 1.0
	*trans[0].Value(handler.SlotVelocity) = 4.0
	*trans[1].Value(handler.SlotVelocity) = 2.0

	m.ToJoint(trans, joints)

	test.That(t, *joints[0].Value(handler.SlotPosition), test.ShouldEqual, 1.5)
	test.That(t, *joints[1].Value(handler.SlotPosition), test.ShouldEqual, 0.5)
	test.That(t, *joints[0].Value(handler.SlotVelocity), test.ShouldEqual, 3.0)
	test.That(t, *joints[1].Value(handler.SlotVelocity), test.ShouldEqual, 1.0)
}

func TestToTransmission(t *testing.T) {
	m, err := NewMapper("1,0,0,1", "2,0,0,3", 2, 2)
	test.That(t, err, test.ShouldBeNil)

	jointCmds := []*handler.Group{
		commandGroup(t, 0, "j1", handler.IfPosition),
		commandGroup(t, 0, "j2", handler.IfPosition),
	}
	transCmds := []*handler.Group{
		commandGroup(t, 1, "a", dxl.ItemGoalPosition),
		commandGroup(t, 2, "b", dxl.ItemGoalPosition),
	}

	*jointCmds[0].Value(0) = 1.0
	*jointCmds[1].Value(0) = -1.0

	m.ToTransmission(jointCmds, transCmds)

	test.That(t, *transCmds[0].Value(0), test.ShouldEqual, 2.0)
	test.That(t, *transCmds[1].Value(0), test.ShouldEqual, -3.0)
}

// The two matrices are independent; round-tripping a joint command through
// J2T then T2J must reproduce T2J * J2T * x exactly.
func TestRoundTripLinearity(t *testing.T) {
	t2jRaw := "1,2,3,4"
	j2tRaw := "0.5,0,1,-1"
	m, err := NewMapper(t2jRaw, j2tRaw, 2, 2)
	test.That(t, err, test.ShouldBeNil)

	x := []float64{0.25, -2.0}

	jointCmds := []*handler.Group{
		commandGroup(t, 0, "j1", handler.IfPosition),
		commandGroup(t, 0, "j2", handler.IfPosition),
	}
	*jointCmds[0].Value(0) = x[0]
	*jointCmds[1].Value(0) = x[1]

	transCmds := []*handler.Group{
		commandGroup(t, 1, "a", dxl.ItemGoalPosition),
		commandGroup(t, 2, "b", dxl.ItemGoalPosition),
	}
	m.ToTransmission(jointCmds, transCmds)

	// Feed the transmission command vector back as position states.
	trans := []*handler.Group{transGroup(t, 1, "a"), transGroup(t, 2, "b")}
	*trans[0].Value(handler.SlotPosition) = *transCmds[0].Value(0)
	*trans[1].Value(handler.SlotPosition) = *transCmds[1].Value(0)

	joints := []*handler.Group{jointStateGroup(t, "j1"), jointStateGroup(t, "j2")}
	m.ToJoint(trans, joints)

	t2j, err := ParseMatrix(t2jRaw, 2, 2)
	test.That(t, err, test.ShouldBeNil)
	j2t, err := ParseMatrix(j2tRaw, 2, 2)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 2; i++ {
		want := 0.0
		for j := 0; j < 2; j++ {
			inner := 0.0
			for k := 0; k < 2; k++ {
				inner = inner + j2t.At(j, k)*x[k]
			}
			want += t2j.At(i, j) * inner
		}
		test.That(t, *joints[i].Value(handler.SlotPosition), test.ShouldEqual, want)
	}
}
