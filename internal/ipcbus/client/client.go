// Package client is the dbus caller side of internal/ipcbus, used by
// cmd/vaxtifyctl to talk to a running vaxtifyd without linking the
// daemon's engine.
package client

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const defaultInterface = "dev.vaxtify.Daemon1"
const objectPath = dbus.ObjectPath("/dev/vaxtify/Daemon")

// Client is a thin dbus proxy for the daemon's exported object.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	iface  string
}

// Dial connects to the session bus and targets busName.
func Dial(busName string) (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Client{
		conn:  conn,
		obj:   conn.Object(busName, objectPath),
		iface: defaultInterface,
	}, nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// PermitStart calls PermitStart(name). A non-nil error carries the
// daemon's formatted "<kind>: <details>" text.
func (c *Client) PermitStart(name string) error {
	return c.obj.Call(c.iface+".PermitStart", 0, name).Err
}

// PermitEnd calls PermitEnd(name).
func (c *Client) PermitEnd(name string) error {
	return c.obj.Call(c.iface+".PermitEnd", 0, name).Err
}

// ServiceReload calls ServiceReload().
func (c *Client) ServiceReload() error {
	return c.obj.Call(c.iface+".ServiceReload", 0).Err
}

// Status is the decoded reply of the Status() method.
type Status struct {
	BlockedCategories []string
	PermitRemaining   map[string]time.Duration
	TabsAlive         int
}

// Status calls Status() and decodes the reply.
func (c *Client) Status() (Status, error) {
	call := c.obj.Call(c.iface+".Status", 0)
	if call.Err != nil {
		return Status{}, call.Err
	}

	var blocked []string
	var permitSeconds map[string]int64
	var tabsAlive int32
	if err := call.Store(&blocked, &permitSeconds, &tabsAlive); err != nil {
		return Status{}, fmt.Errorf("decode status reply: %w", err)
	}

	remaining := make(map[string]time.Duration, len(permitSeconds))
	for name, secs := range permitSeconds {
		remaining[name] = time.Duration(secs) * time.Second
	}

	return Status{
		BlockedCategories: blocked,
		PermitRemaining:   remaining,
		TabsAlive:         int(tabsAlive),
	}, nil
}
