package cluster

import (
	"fmt"
	"os"

	consul "github.com/hashicorp/consul/api"
)

// Registration describes this instance to Consul.
type Registration struct {
	Name string
	Host string // defaults to the hostname
	Port int
	// HealthPath is polled by the agent over HTTP on Port.
	HealthPath string
}

// ID is the Consul service id for this instance.
func (r Registration) ID() string {
	return fmt.Sprintf("%s-%s", r.Name, r.host())
}

func (r Registration) host() string {
	if r.Host != "" {
		return r.Host
	}
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	h, _ := os.Hostname()
	return h
}

func (r Registration) agentService() *consul.AgentServiceRegistration {
	path := r.HealthPath
	if path == "" {
		path = "/health"
	}
	return &consul.AgentServiceRegistration{
		ID:   r.ID(),
		Name: r.Name,
		Port: r.Port,
		Tags: []string{"websocket", "http"},
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", r.host(), r.Port, path),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Register announces the instance through the manager's current agent and
// re-announces it after every failover.
func Register(m *ConsulManager, r Registration) error {
	if err := register(m, r); err != nil {
		return err
	}
	m.OnReconnect(func() {
		if err := register(m, r); err != nil {
			m.logger.Error("re-registration failed", "service_id", r.ID(), "error", err)
		}
	})
	return nil
}

func register(m *ConsulManager, r Registration) error {
	c := m.Client()
	if c == nil {
		return fmt.Errorf("consul: not connected")
	}
	if err := c.Agent().ServiceRegister(r.agentService()); err != nil {
		return fmt.Errorf("register %s: %w", r.ID(), err)
	}
	m.logger.Info("service registered", "service_id", r.ID())
	return nil
}

// Deregister removes the instance from the agent.
func Deregister(m *ConsulManager, r Registration) error {
	c := m.Client()
	if c == nil {
		return nil
	}
	return c.Agent().ServiceDeregister(r.ID())
}
