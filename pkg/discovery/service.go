package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_relayshare._tcp"
	DefaultDomain      = "local"
)

type ServiceInfo struct {
	Name   string // hostname or instance name
	Type   string // service name, e.g., "_relayshare._tcp"
	Domain string // domain, e.g., "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// Key identifies a service instance independent of its address.
func (s ServiceInfo) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.Name, s.Type, s.Domain)
}

// RelayURL is the websocket URL a client dials to reach an announced relay.
func (s ServiceInfo) RelayURL() string {
	host := "localhost"
	if s.Addr != nil {
		host = s.Addr.String()
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(s.Port)) + "/"
}

// DiscoveryResult carries either a snapshot of the live services or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// QueryName is the fully qualified browse name for a service type.
func QueryName(serviceType, domain string) string {
	if domain == "" {
		domain = DefaultDomain
	}
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}
