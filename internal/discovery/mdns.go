// Package discovery advertises the relay on the local network.
package discovery

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// ServiceType is the DNS-SD service the relay registers under.
const ServiceType = "_whiteboard._tcp"

// Advertiser keeps an mDNS responder alive until Shutdown.
type Advertiser struct {
	server *mdns.Server
	logger zerolog.Logger
}

// Advertise announces this host's relay on port.
func Advertise(port int, version string, logger zerolog.Logger) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, TXTRecords(version))
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	logger.Info().Str("service", ServiceType).Int("port", port).Msg("advertising over mDNS")
	return &Advertiser{server: server, logger: logger}, nil
}

// TXTRecords describes the endpoints a LAN client needs.
func TXTRecords(version string) []string {
	return []string{
		"version=" + version,
		"ws=/ws",
		"api=/api",
	}
}

// Shutdown stops responding to queries.
func (a *Advertiser) Shutdown() error {
	a.logger.Debug().Msg("stopping mDNS responder")
	return a.server.Shutdown()
}
