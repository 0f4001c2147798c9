// internal/dxl/serial/client.go
package serial

import (
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	goserial "github.com/goburrow/serial"
	protocol "github.com/haguro/go-dxl/protocol/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/openroboworks/dxlbridge/internal/dxl"
)

const defaultTimeout = 100 * time.Millisecond

// boundItem is one registered read or write binding: a named register tied to
// a shared float64 cell.
type boundItem struct {
	name string
	item ControlItem
	cell *float64
}

// Client implements dxl.Bus over a serial port with Protocol 2.0 framing.
// One transaction at a time; the mutex covers every bus exchange.
type Client struct {
	logger  golog.Logger
	timeout time.Duration

	// per-device control tables, merged from defaults and config overrides
	tables    map[uint8]ControlTable
	overrides map[uint8]ControlTable

	mu   sync.Mutex
	port goserial.Port
	h    *protocol.Handler

	readSets  map[uint8][]boundItem
	readOrder []uint8
	writeSets  map[uint8][]boundItem
	writeOrder []uint8

	readCommitted  bool
	writeCommitted bool

	torque map[uint8]bool
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// Overrides merges extra or replacement control items per device id.
	Overrides map[uint8]ControlTable
}

// New creates an unconnected client.
func New(logger golog.Logger, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		logger:    logger,
		timeout:   opts.Timeout,
		tables:    map[uint8]ControlTable{},
		readSets:  map[uint8][]boundItem{},
		writeSets: map[uint8][]boundItem{},
		torque:    map[uint8]bool{},
		overrides: opts.Overrides,
	}
}

// Connect opens the port and verifies every device answers on the chain.
func (c *Client) Connect(ids []uint8, port string, baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := goserial.Open(&goserial.Config{
		Address:  port,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  c.timeout,
	})
	if err != nil {
		return errors.Wrapf(dxl.ErrCommunication, "open %s: %v", port, err)
	}

	c.port = p
	c.h = protocol.NewHandler(p, c.timeout)

	for _, id := range ids {
		table := c.tableFor(id)
		model := table[dxl.ItemModelNumber]
		if _, err := c.h.Read(id, model.Addr, uint16(model.Size)); err != nil {
			_ = p.Close()
			c.port = nil
			c.h = nil
			return errors.Wrapf(dxl.ErrCommunication, "device %d not responding: %v", id, err)
		}
		c.torque[id] = false
	}

	return nil
}

// Close releases the serial port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.h = nil
	return err
}

// tableFor lazily merges the default table with per-device overrides.
func (c *Client) tableFor(id uint8) ControlTable {
	if t, ok := c.tables[id]; ok {
		return t
	}
	t := DefaultTable()
	for name, item := range c.overrides[id] {
		t[name] = item
	}
	c.tables[id] = t
	return t
}

func (c *Client) lookup(id uint8, name string) (ControlItem, error) {
	item, ok := c.tableFor(id)[name]
	if !ok {
		return ControlItem{}, errors.Wrapf(dxl.ErrUnknownItem, "device %d item %q", id, name)
	}
	return item, nil
}

// SetReadItems registers the per-tick read bindings for one device.
func (c *Client) SetReadItems(id uint8, names []string, dests []*float64) error {
	if len(names) != len(dests) {
		return errors.Errorf("dxl serial: %d names but %d cells", len(names), len(dests))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bound := make([]boundItem, 0, len(names))
	for i, name := range names {
		item, err := c.lookup(id, name)
		if err != nil {
			return err
		}
		bound = append(bound, boundItem{name: name, item: item, cell: dests[i]})
	}

	if _, seen := c.readSets[id]; !seen {
		c.readOrder = append(c.readOrder, id)
	}
	c.readSets[id] = bound
	c.readCommitted = false
	return nil
}

// CommitReadSet finalizes the registered read bindings.
func (c *Client) CommitReadSet() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readSets) == 0 {
		return errors.New("dxl serial: no read items registered")
	}
	c.readCommitted = true
	return nil
}

// SetWriteItems registers the per-tick write bindings for one device.
func (c *Client) SetWriteItems(id uint8, names []string, srcs []*float64) error {
	if len(names) != len(srcs) {
		return errors.Errorf("dxl serial: %d names but %d cells", len(names), len(srcs))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bound := make([]boundItem, 0, len(names))
	for i, name := range names {
		item, err := c.lookup(id, name)
		if err != nil {
			return err
		}
		bound = append(bound, boundItem{name: name, item: item, cell: srcs[i]})
	}

	if _, seen := c.writeSets[id]; !seen {
		c.writeOrder = append(c.writeOrder, id)
	}
	c.writeSets[id] = bound
	c.writeCommitted = false
	return nil
}

// CommitWriteSet finalizes the registered write bindings.
func (c *Client) CommitWriteSet() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeCommitted = true
	return nil
}

// BatchedRead reads every registered item into its bound cell.
// All-or-nothing: the first transport failure aborts the cycle.
func (c *Client) BatchedRead() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return errors.Wrap(dxl.ErrCommunication, "not connected")
	}
	if !c.readCommitted {
		return errors.New("dxl serial: read set not committed")
	}

	for _, id := range c.readOrder {
		for _, b := range c.readSets[id] {
			data, err := c.h.Read(id, b.item.Addr, uint16(b.item.Size))
			if err != nil {
				if !deviceFault(err) {
					return errors.Wrapf(dxl.ErrCommunication, "read id=%d item=%q: %v", id, b.name, err)
				}
				// Status packet carries the fault bit; the error check owns
				// fault handling. Keep the last value if no data came back.
				c.logger.Debugw("read with device fault flag", "id", id, "item", b.name, "error", err)
				if len(data) < b.item.Size {
					continue
				}
			}
			v, err := decodeItem(data, b.item.Size)
			if err != nil {
				return errors.Wrapf(dxl.ErrCommunication, "decode id=%d item=%q: %v", id, b.name, err)
			}
			*b.cell = v
		}
	}
	return nil
}

// BatchedWrite pushes every registered write cell to its device register.
// Device fault flags are tolerated; transport failures are collected.
func (c *Client) BatchedWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return errors.Wrap(dxl.ErrCommunication, "not connected")
	}
	if !c.writeCommitted {
		return errors.New("dxl serial: write set not committed")
	}

	var errs error
	for _, id := range c.writeOrder {
		for _, b := range c.writeSets[id] {
			data, err := encodeItem(*b.cell, b.item.Size)
			if err != nil {
				errs = multierr.Combine(errs, errors.Wrapf(err, "encode id=%d item=%q", id, b.name))
				continue
			}
			if err := c.h.Write(id, b.item.Addr, data...); err != nil {
				if deviceFault(err) {
					c.logger.Debugw("write with device fault flag", "id", id, "item", b.name, "error", err)
					continue
				}
				errs = multierr.Combine(errs,
					errors.Wrapf(dxl.ErrCommunication, "write id=%d item=%q: %v", id, b.name, err))
			}
		}
	}
	return errs
}

// ReadItem reads a single named register immediately.
func (c *Client) ReadItem(id uint8, name string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return 0, errors.Wrap(dxl.ErrCommunication, "not connected")
	}
	item, err := c.lookup(id, name)
	if err != nil {
		return 0, err
	}
	data, err := c.h.Read(id, item.Addr, uint16(item.Size))
	if err != nil && !deviceFault(err) {
		return 0, errors.Wrapf(dxl.ErrCommunication, "read id=%d item=%q: %v", id, name, err)
	}
	return decodeItem(data, item.Size)
}

// WriteItem writes a single named register immediately.
func (c *Client) WriteItem(id uint8, name string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return errors.Wrap(dxl.ErrCommunication, "not connected")
	}
	item, err := c.lookup(id, name)
	if err != nil {
		return err
	}
	data, err := encodeItem(value, item.Size)
	if err != nil {
		return err
	}
	if err := c.h.Write(id, item.Addr, data...); err != nil && !deviceFault(err) {
		return errors.Wrapf(dxl.ErrCommunication, "write id=%d item=%q: %v", id, name, err)
	}
	return nil
}

// EnableTorque turns torque on for every listed device.
func (c *Client) EnableTorque(ids []uint8) error {
	return c.setTorque(ids, 1)
}

// DisableTorque turns torque off for every listed device.
func (c *Client) DisableTorque(ids []uint8) error {
	return c.setTorque(ids, 0)
}

func (c *Client) setTorque(ids []uint8, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return errors.Wrap(dxl.ErrCommunication, "not connected")
	}

	var errs error
	for _, id := range ids {
		item, err := c.lookup(id, dxl.ItemTorqueEnable)
		if err != nil {
			errs = multierr.Combine(errs, err)
			continue
		}
		if err := c.h.Write(id, item.Addr, value); err != nil {
			// Stale fault flags must not block torque changes.
			if deviceFault(err) {
				continue
			}
			errs = multierr.Combine(errs,
				errors.Wrapf(dxl.ErrCommunication, "torque id=%d: %v", id, err))
		}
	}
	return errs
}

// TorqueStates reads the device-reported torque bit per id. A device that
// cannot be read reports false.
func (c *Client) TorqueStates(ids []uint8) map[uint8]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[uint8]bool, len(ids))
	for _, id := range ids {
		if c.h == nil {
			out[id] = false
			continue
		}
		item, err := c.lookup(id, dxl.ItemTorqueEnable)
		if err != nil {
			out[id] = false
			continue
		}
		data, err := c.h.Read(id, item.Addr, uint16(item.Size))
		if err != nil && !deviceFault(err) {
			out[id] = c.torque[id]
			continue
		}
		v, err := decodeItem(data, item.Size)
		if err != nil {
			out[id] = false
			continue
		}
		out[id] = v != 0
		c.torque[id] = out[id]
	}
	return out
}

// Reboot issues the Protocol 2.0 reboot instruction.
func (c *Client) Reboot(id uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		return errors.Wrap(dxl.ErrCommunication, "not connected")
	}
	if err := c.h.Reboot(id); err != nil {
		return errors.Wrapf(dxl.ErrCommunication, "reboot id=%d: %v", id, err)
	}
	c.torque[id] = false
	return nil
}

// ResetTransport drops every read/write registration. The port stays open;
// recovery re-registers from scratch.
func (c *Client) ResetTransport() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.readSets = map[uint8][]boundItem{}
	c.writeSets = map[uint8][]boundItem{}
	c.readOrder = nil
	c.writeOrder = nil
	c.readCommitted = false
	c.writeCommitted = false
}

// deviceFault reports whether err is a device-side fault flag in an otherwise
// completed exchange, as opposed to a transport failure.
func deviceFault(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "hardware error") ||
		strings.Contains(s, "data limit error") ||
		strings.Contains(s, "overload error") ||
		strings.Contains(s, "overheating error") ||
		strings.Contains(s, "processing error")
}
