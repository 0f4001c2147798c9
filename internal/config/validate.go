// internal/config/validate.go
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/openroboworks/dxlbridge/internal/handler"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	b := &cfg.Bridge
	const path = "bridge"

	if b.PortName == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "port_name")
	}
	if b.BaudRate <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("baud_rate must be > 0"))
	}
	if b.NumJoints <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("number_of_joints must be > 0"))
	}
	if b.NumTransmissions <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("number_of_transmissions must be > 0"))
	}

	// ------------------------------------------------------------
	// MATRIX COEFFICIENT COUNTS
	// ------------------------------------------------------------

	if err := checkMatrix(b.TransmissionToJointMatrix, b.NumJoints*b.NumTransmissions); err != nil {
		return goutils.NewConfigValidationError(path+".transmission_to_joint_matrix", err)
	}
	if err := checkMatrix(b.JointToTransmissionMatrix, b.NumTransmissions*b.NumJoints); err != nil {
		return goutils.NewConfigValidationError(path+".joint_to_transmission_matrix", err)
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	seenID := make(map[uint8]int)
	actuators := 0

	for i, d := range b.Devices {
		dpath := fmt.Sprintf("%s.devices.%d", path, i)

		if prev, dup := seenID[d.ID]; dup {
			return goutils.NewConfigValidationError(dpath,
				errors.Errorf("device id %d already used by devices.%d", d.ID, prev))
		}
		seenID[d.ID] = i

		switch d.Type {
		case DeviceTypeActuator:
			actuators++
			// Single command interface per transmission.
			if len(d.CommandItems) != 1 {
				return goutils.NewConfigValidationError(dpath,
					errors.Errorf("actuator must carry exactly one command item, got %d", len(d.CommandItems)))
			}
		case DeviceTypeSensor:
			if len(d.CommandItems) != 0 {
				return goutils.NewConfigValidationError(dpath,
					errors.New("auxiliary-sensor cannot carry command items"))
			}
			if len(d.StateItems) == 0 {
				return goutils.NewConfigValidationError(dpath,
					errors.New("auxiliary-sensor must carry at least one state item"))
			}
		default:
			return goutils.NewConfigValidationError(dpath,
				errors.Errorf("type must be %q or %q, got %q",
					DeviceTypeActuator, DeviceTypeSensor, d.Type))
		}

		for j, it := range d.ControlTable {
			if it.Name == "" {
				return goutils.NewConfigValidationFieldRequiredError(
					fmt.Sprintf("%s.control_table.%d", dpath, j), "name")
			}
			if it.Size != 1 && it.Size != 2 && it.Size != 4 {
				return goutils.NewConfigValidationError(dpath,
					errors.Errorf("control table item %q size must be 1, 2 or 4", it.Name))
			}
		}
	}

	if actuators != b.NumTransmissions {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("number_of_transmissions is %d but %d actuator devices are configured",
				b.NumTransmissions, actuators))
	}

	// ------------------------------------------------------------
	// JOINTS
	// ------------------------------------------------------------

	if len(b.Joints) != b.NumJoints {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("number_of_joints is %d but %d joints are configured",
				b.NumJoints, len(b.Joints)))
	}

	seenName := make(map[string]int)
	for i, j := range b.Joints {
		jpath := fmt.Sprintf("%s.joints.%d", path, i)

		if j.Name == "" {
			return goutils.NewConfigValidationFieldRequiredError(jpath, "name")
		}
		if prev, dup := seenName[j.Name]; dup {
			return goutils.NewConfigValidationError(jpath,
				errors.Errorf("joint name %q already used by joints.%d", j.Name, prev))
		}
		seenName[j.Name] = i

		for _, it := range j.StateInterfaces {
			if !handler.ValidStateInterface(it) {
				return goutils.NewConfigValidationError(jpath,
					errors.Errorf("unsupported state interface %q", it))
			}
		}
		for _, it := range j.CommandInterfaces {
			if !handler.ValidCommandInterface(it) {
				return goutils.NewConfigValidationError(jpath,
					errors.Errorf("unsupported command interface %q", it))
			}
		}
	}

	// ------------------------------------------------------------
	// ERROR BIT OVERRIDES
	// ------------------------------------------------------------

	for i, eb := range b.HardwareErrorBits {
		epath := fmt.Sprintf("%s.hardware_error_bits.%d", path, i)
		if eb.Mask == 0 {
			return goutils.NewConfigValidationError(epath, errors.New("mask must be non-zero"))
		}
		if eb.Cause == "" {
			return goutils.NewConfigValidationFieldRequiredError(epath, "cause")
		}
	}

	return nil
}

// checkMatrix verifies a flattened coefficient list has exactly want elements
// and that every element parses as a float. No allocation survives this call.
func checkMatrix(raw string, want int) error {
	fields := strings.Split(raw, ",")
	if len(fields) != want {
		return errors.Errorf("expected %d coefficients, got %d", want, len(fields))
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return errors.Errorf("bad coefficient %q", strings.TrimSpace(f))
		}
	}
	return nil
}
