// Package cluster ties a server instance into Consul: a resilient agent connection,
// service registration and discovery, and the aggregated health endpoint Consul polls.
package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	consul "github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-hclog"
)

const monitorInterval = 10 * time.Second

// ConsulManager keeps a working client to one of several Consul agents and fails
// over when the current one loses its leader.
type ConsulManager struct {
	addrs       []string
	currentAddr string
	client      *consul.Client
	mu          sync.RWMutex
	onReconnect []func()
	logger      hclog.Logger
}

// NewConsulManager connects to the first reachable agent in the comma separated addrs.
func NewConsulManager(addrs string, logger hclog.Logger) (*ConsulManager, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	m := &ConsulManager{addrs: splitAddrs(addrs), logger: logger}
	if len(m.addrs) == 0 {
		return nil, fmt.Errorf("no consul address configured")
	}
	if err := m.reconnect(); err != nil {
		return nil, err
	}
	return m, nil
}

// OnReconnect registers fn to run after every successful failover.
func (m *ConsulManager) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// Client returns the current agent client.
func (m *ConsulManager) Client() *consul.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Ping reports whether the current agent still sees a raft leader.
func (m *ConsulManager) Ping(context.Context) error {
	c := m.Client()
	if c == nil {
		return fmt.Errorf("consul: not connected")
	}
	_, err := c.Status().Leader()
	return err
}

// Run watches the connection until ctx is done.
func (m *ConsulManager) Run(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Ping(ctx); err != nil {
				m.logger.Warn("consul agent unhealthy, failing over", "addr", m.currentAddr, "error", err)
				if err := m.reconnect(); err != nil {
					m.logger.Error("consul reconnect failed", "error", err)
				}
			}
		}
	}
}

func (m *ConsulManager) reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, addr, err := dial(m.addrs, m.logger)
	if err != nil {
		m.client = nil
		return err
	}
	m.client, m.currentAddr = client, addr
	m.logger.Info("connected to consul", "addr", addr)
	for _, fn := range m.onReconnect {
		go fn()
	}
	return nil
}

// dial returns a client for the first agent that answers with a leader.
func dial(addrs []string, logger hclog.Logger) (*consul.Client, string, error) {
	for _, addr := range addrs {
		cfg := consul.DefaultConfig()
		cfg.Address = addr
		client, err := consul.NewClient(cfg)
		if err != nil {
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			logger.Debug("consul node unavailable", "addr", addr, "error", err)
			continue
		}
		return client, addr, nil
	}
	return nil, "", fmt.Errorf("no consul node reachable in %s", strings.Join(addrs, ","))
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
