// internal/config/config.go
package config

// Config is the root of the bridge configuration file.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

// BridgeConfig holds everything needed to bring up one actuator bus.
type BridgeConfig struct {
	PortName        string  `yaml:"port_name"`
	BaudRate        int     `yaml:"baud_rate"`
	TickRateHz      int     `yaml:"tick_rate_hz"`
	ErrorTimeoutSec float64 `yaml:"error_timeout_sec"`

	NumJoints        int `yaml:"number_of_joints"`
	NumTransmissions int `yaml:"number_of_transmissions"`

	// Flattened row-major coefficient lists, comma separated.
	// transmission_to_joint is joints x transmissions,
	// joint_to_transmission is transmissions x joints.
	TransmissionToJointMatrix string `yaml:"transmission_to_joint_matrix"`
	JointToTransmissionMatrix string `yaml:"joint_to_transmission_matrix"`

	Devices []DeviceConfig `yaml:"devices"`
	Joints  []JointConfig  `yaml:"joints"`

	// Optional override of the hardware-error bit table.
	// Empty means the built-in Protocol 2.0 table applies.
	HardwareErrorBits []ErrorBitConfig `yaml:"hardware_error_bits"`
}

// ---- DEVICE ----

// Device types.
const (
	DeviceTypeActuator = "actuator"
	DeviceTypeSensor   = "auxiliary-sensor"
)

type DeviceConfig struct {
	ID   uint8  `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Items written once at device initialization (and again after recovery).
	InitItems map[string]float64 `yaml:"init_items"`

	// Items polled every read tick (actuators) or read by name (sensors).
	StateItems []string `yaml:"state_items"`

	// Items pushed every write tick. Actuators carry exactly one.
	CommandItems []string `yaml:"command_items"`

	// Extra control-table entries merged over the built-in table.
	ControlTable []ControlItemConfig `yaml:"control_table"`
}

type ControlItemConfig struct {
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`
	Size    int    `yaml:"size"`
}

// ---- JOINT ----

type JointConfig struct {
	Name              string   `yaml:"name"`
	StateInterfaces   []string `yaml:"state_interfaces"`
	CommandInterfaces []string `yaml:"command_interfaces"`
}

// ---- ERROR BITS ----

type ErrorBitConfig struct {
	Mask  uint8  `yaml:"mask"`
	Cause string `yaml:"cause"`
}

// Actuators returns the actuator subset of Devices, in file order.
func (b *BridgeConfig) Actuators() []DeviceConfig {
	var out []DeviceConfig
	for _, d := range b.Devices {
		if d.Type == DeviceTypeActuator {
			out = append(out, d)
		}
	}
	return out
}

// Sensors returns the auxiliary-sensor subset of Devices, in file order.
func (b *BridgeConfig) Sensors() []DeviceConfig {
	var out []DeviceConfig
	for _, d := range b.Devices {
		if d.Type == DeviceTypeSensor {
			out = append(out, d)
		}
	}
	return out
}
