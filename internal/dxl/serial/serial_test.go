// internal/dxl/serial/serial_test.go
package serial

import (
	"errors"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	cfg "github.com/openroboworks/dxlbridge/internal/config"
	"github.com/openroboworks/dxlbridge/internal/dxl"
)

func TestDecodeItem(t *testing.T) {
	v, err := decodeItem([]byte{0x05}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 5.0)

	// -1 current reading, two's complement.
	v, err = decodeItem([]byte{0xFF, 0xFF}, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, -1.0)

	// 2048 ticks, mid-range position.
	v, err = decodeItem([]byte{0x00, 0x08, 0x00, 0x00}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 2048.0)

	v, err = decodeItem([]byte{0xFC, 0xFF, 0xFF, 0xFF}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, -4.0)

	_, err = decodeItem([]byte{0x01}, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "short register payload")

	_, err = decodeItem([]byte{1, 2, 3}, 3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEncodeItem(t *testing.T) {
	data, err := encodeItem(-4, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0xFC, 0xFF, 0xFF, 0xFF})

	data, err = encodeItem(-1, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0xFF, 0xFF})

	data, err = encodeItem(1, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x01})

	_, err = encodeItem(1, 3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	test.That(t, table[dxl.ItemTorqueEnable], test.ShouldResemble, ControlItem{Addr: 64, Size: 1})
	test.That(t, table[dxl.ItemHardwareErrorStatus], test.ShouldResemble, ControlItem{Addr: 70, Size: 1})
	test.That(t, table[dxl.ItemGoalPosition], test.ShouldResemble, ControlItem{Addr: 116, Size: 4})
	test.That(t, table[dxl.ItemPresentPosition], test.ShouldResemble, ControlItem{Addr: 132, Size: 4})
}

func TestBuildMergesOverrides(t *testing.T) {
	logger := golog.NewTestLogger(t)
	c := Build(logger, &cfg.BridgeConfig{
		Devices: []cfg.DeviceConfig{
			{ID: 1, Type: cfg.DeviceTypeActuator},
			{ID: 7, Type: cfg.DeviceTypeSensor, ControlTable: []cfg.ControlItemConfig{
				{Name: "Analog Input", Address: 26, Size: 2},
				{Name: "Goal Position", Address: 30, Size: 2},
			}},
		},
	})

	// Device 1 keeps the stock table.
	item, err := c.lookup(1, dxl.ItemGoalPosition)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, item, test.ShouldResemble, ControlItem{Addr: 116, Size: 4})

	// Device 7 gains a new item and shadows a stock one.
	item, err = c.lookup(7, "Analog Input")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, item, test.ShouldResemble, ControlItem{Addr: 26, Size: 2})

	item, err = c.lookup(7, dxl.ItemGoalPosition)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, item, test.ShouldResemble, ControlItem{Addr: 30, Size: 2})

	_, err = c.lookup(1, "Analog Input")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, dxl.ErrUnknownItem), test.ShouldBeTrue)
}

func TestUncommittedBatches(t *testing.T) {
	c := New(golog.NewTestLogger(t), Options{})
	err := c.BatchedRead()
	test.That(t, err, test.ShouldNotBeNil)
}
