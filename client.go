package authflow

import (
	"log"

	"github.com/MrEthical07/authflow/session"
)

// Client owns one gateway, its session store, and the ambient metrics and
// audit plumbing. Build one per process.
type Client struct {
	config  Config
	gateway *Gateway
	store   *session.Store
	metrics *Metrics
	logger  *log.Logger
}

// Gateway returns the API façade.
func (c *Client) Gateway() *Gateway {
	return c.gateway
}

// Store returns the session store.
func (c *Client) Store() *session.Store {
	return c.store
}

// NewMachine returns a stopped machine driving this client's gateway,
// configured from the Flow section. opts are applied after the defaults.
func (c *Client) NewMachine(opts ...MachineOption) *Machine {
	base := []MachineOption{
		WithLenientCredentials(c.config.Flow.LenientCredentials),
		WithMachineLogger(c.logger),
	}
	return NewMachine(c.gateway, append(base, opts...)...)
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// MetricsSnapshot returns current metric values.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped counts audit events dropped under backpressure.
func (c *Client) AuditDropped() uint64 {
	return c.gateway.audit.Dropped()
}

// Close flushes and stops the audit dispatcher.
func (c *Client) Close() {
	c.gateway.audit.Close()
}
