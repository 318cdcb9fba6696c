package cluster

import (
	"fmt"
	"math/rand/v2"

	consul "github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-hclog"
)

// DiscoverAny returns host:port of a random healthy instance of service.
func DiscoverAny(addrs, service string) (string, error) {
	client, _, err := dial(splitAddrs(addrs), hclog.NewNullLogger())
	if err != nil {
		return "", err
	}
	entries, _, err := client.Health().Service(service, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", service, err)
	}
	return pickHealthy(entries, rand.IntN)
}

func pickHealthy(entries []*consul.ServiceEntry, intn func(int) int) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instance")
	}
	s := entries[intn(len(entries))]
	addr := s.Service.Address
	if addr == "" && s.Node != nil {
		addr = s.Node.Address
	}
	return fmt.Sprintf("%s:%d", addr, s.Service.Port), nil
}
