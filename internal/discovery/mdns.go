// ABOUTME: mDNS discovery of ACAU receivers on the local network
// ABOUTME: Receivers advertise the stream port; senders browse for it
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_acau._tcp"

// Peer is a discovered receiver.
type Peer struct {
	Name string
	Host string
	Port int
}

// Manager handles mDNS advertisement and browsing for one endpoint.
type Manager struct {
	name   string
	port   int
	ctx    context.Context
	cancel context.CancelFunc
	peers  chan Peer
}

// NewManager creates a manager for an endpoint named name whose stream
// port is port.
func NewManager(name string, port int) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		name:   name,
		port:   port,
		ctx:    ctx,
		cancel: cancel,
		peers:  make(chan Peer, 10),
	}
}

// Advertise publishes this receiver's stream port until Stop.
func (m *Manager) Advertise() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(m.name, serviceType, "", "", m.port, ips,
		[]string{"role=receiver"})
	if err != nil {
		return fmt.Errorf("failed to create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("discovery: advertising %s on port %d", m.name, m.port)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse starts searching for receivers. Results arrive on Peers.
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				peer := Peer{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Printf("discovery: found receiver %s at %s:%d", peer.Name, peer.Host, peer.Port)

				select {
				case m.peers <- peer:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		mdns.Query(params)
		close(entries)
	}
}

// Peers returns the channel of discovered receivers.
func (m *Manager) Peers() <-chan Peer {
	return m.peers
}

// Stop ends advertisement and browsing.
func (m *Manager) Stop() {
	m.cancel()
}

// localIPs returns the non-loopback IPv4 addresses of up interfaces.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
