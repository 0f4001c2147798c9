// internal/transmission/mapper.go
package transmission

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/openroboworks/dxlbridge/internal/dxl"
	"github.com/openroboworks/dxlbridge/internal/handler"
)

// Matrix is a dense row-major coefficient matrix backed by one flat buffer,
// sized once at construction and immutable afterwards.
type Matrix struct {
	rows int
	cols int
	m    []float64
}

// ParseMatrix builds a rows x cols matrix from a flattened comma-separated
// coefficient list. The element count must match exactly; nothing is
// allocated on failure.
func ParseMatrix(raw string, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("transmission: invalid matrix shape %dx%d", rows, cols)
	}

	fields := strings.Split(raw, ",")
	if len(fields) != rows*cols {
		return nil, errors.Errorf(
			"transmission: expected %d coefficients for %dx%d matrix, got %d",
			rows*cols, rows, cols, len(fields))
	}

	vals := make([]float64, 0, rows*cols)
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Errorf("transmission: bad coefficient %q", strings.TrimSpace(f))
		}
		vals = append(vals, v)
	}

	return &Matrix{rows: rows, cols: cols, m: vals}, nil
}

// At returns the coefficient at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.m[i*m.cols+j]
}

// Rows returns the row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column count.
func (m *Matrix) Cols() int { return m.cols }

// Mapper applies the fixed linear transforms between actuator space and joint
// space. Both directions read and write handler groups in place; the mapper
// itself holds no mutable state beyond the coefficient buffers.
type Mapper struct {
	t2j *Matrix // joints x transmissions
	j2t *Matrix // transmissions x joints
}

// NewMapper builds a mapper from the two flattened config strings.
func NewMapper(t2jRaw, j2tRaw string, joints, transmissions int) (*Mapper, error) {
	t2j, err := ParseMatrix(t2jRaw, joints, transmissions)
	if err != nil {
		return nil, errors.Wrap(err, "transmission_to_joint_matrix")
	}
	j2t, err := ParseMatrix(j2tRaw, transmissions, joints)
	if err != nil {
		return nil, errors.Wrap(err, "joint_to_transmission_matrix")
	}
	return &Mapper{t2j: t2j, j2t: j2t}, nil
}

// ToJoint maps transmission states into joint states for position, velocity
// and effort. Transmission quantities are resolved by item name; a quantity a
// transmission does not report contributes zero.
func (m *Mapper) ToJoint(transStates, jointStates []*handler.Group) {
	quantities := []struct {
		jointSlot int
		items     []string
	}{
		{handler.SlotPosition, []string{dxl.ItemPresentPosition}},
		{handler.SlotVelocity, []string{dxl.ItemPresentVelocity}},
		{handler.SlotEffort, []string{dxl.ItemPresentCurrent, dxl.ItemPresentLoad}},
	}

	for _, q := range quantities {
		for i := 0; i < m.t2j.rows; i++ {
			value := 0.0
			for j := 0; j < m.t2j.cols; j++ {
				g := transStates[j]
				for _, item := range q.items {
					if cell, ok := g.ValueOf(item); ok {
						value += m.t2j.At(i, j) * *cell
						break
					}
				}
			}
			*jointStates[i].Value(q.jointSlot) = value
		}
	}
}

// ToTransmission maps each joint's first command slot into each transmission's
// single command slot.
func (m *Mapper) ToTransmission(jointCommands, transCommands []*handler.Group) {
	for i := 0; i < m.j2t.rows; i++ {
		if transCommands[i].Len() == 0 {
			continue
		}
		value := 0.0
		for j := 0; j < m.j2t.cols; j++ {
			g := jointCommands[j]
			if g.Len() == 0 {
				continue
			}
			value += m.j2t.At(i, j) * *g.Value(0)
		}
		*transCommands[i].Value(0) = value
	}
}
