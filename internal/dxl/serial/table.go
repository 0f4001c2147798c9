// internal/dxl/serial/table.go
package serial

import (
	"github.com/openroboworks/dxlbridge/internal/dxl"
)

// ControlItem is one named register: address and byte size.
type ControlItem struct {
	Addr uint16
	Size int
}

// ControlTable maps item names to registers for one device.
type ControlTable map[string]ControlItem

// DefaultTable returns the Protocol 2.0 X-series control table. Devices with
// a different layout override entries through configuration.
func DefaultTable() ControlTable {
	return ControlTable{
		dxl.ItemModelNumber:     {Addr: 0, Size: 2},
		"ID":                    {Addr: 7, Size: 1},
		"Baud Rate":             {Addr: 8, Size: 1},
		dxl.ItemReturnDelayTime: {Addr: 9, Size: 1},
		"Drive Mode":            {Addr: 10, Size: 1},
		dxl.ItemOperatingMode:   {Addr: 11, Size: 1},
		"Homing Offset":         {Addr: 20, Size: 4},
		"Temperature Limit":     {Addr: 31, Size: 1},
		"Max Voltage Limit":     {Addr: 32, Size: 2},
		"Min Voltage Limit":     {Addr: 34, Size: 2},
		"Current Limit":         {Addr: 38, Size: 2},
		"Velocity Limit":        {Addr: 44, Size: 4},
		"Max Position Limit":    {Addr: 48, Size: 4},
		"Min Position Limit":    {Addr: 52, Size: 4},
		dxl.ItemTorqueEnable:    {Addr: 64, Size: 1},
		"LED":                   {Addr: 65, Size: 1},
		"Status Return Level":   {Addr: 68, Size: 1},

		dxl.ItemHardwareErrorStatus: {Addr: 70, Size: 1},

		"Velocity I Gain": {Addr: 76, Size: 2},
		"Velocity P Gain": {Addr: 78, Size: 2},
		"Position D Gain": {Addr: 80, Size: 2},
		"Position I Gain": {Addr: 82, Size: 2},
		"Position P Gain": {Addr: 84, Size: 2},

		dxl.ItemGoalCurrent:  {Addr: 102, Size: 2},
		dxl.ItemGoalVelocity: {Addr: 104, Size: 4},

		"Profile Acceleration": {Addr: 108, Size: 4},
		"Profile Velocity":     {Addr: 112, Size: 4},

		dxl.ItemGoalPosition: {Addr: 116, Size: 4},
		"Moving":             {Addr: 122, Size: 1},

		dxl.ItemPresentCurrent:  {Addr: 126, Size: 2},
		dxl.ItemPresentVelocity: {Addr: 128, Size: 4},
		dxl.ItemPresentPosition: {Addr: 132, Size: 4},

		"Present Input Voltage": {Addr: 144, Size: 2},
		"Present Temperature":   {Addr: 146, Size: 1},
	}
}
