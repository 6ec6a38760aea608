// ABOUTME: mDNS service discovery for beatmix remote control
// ABOUTME: Advertises a running player and browses for players on the network
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type players advertise
const ServiceType = "_beatmix._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int

	// Path is advertised in the TXT record
	Path string

	// BrowseTimeout bounds one query round; zero means 3s
	BrowseTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	players chan *PlayerInfo

	mu     sync.Mutex
	server *mdns.Server
	seen   map[string]bool
}

// PlayerInfo describes a discovered player
type PlayerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr is host:port for dialing
func (p *PlayerInfo) Addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprint(p.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		players: make(chan *PlayerInfo, 10),
		seen:    make(map[string]bool),
	}
}

// Advertise announces this player via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config.Path),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)
	return nil
}

// Browse searches for players in the background; results arrive on Players
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for m.ctx.Err() == nil {
		m.query(m.config.BrowseTimeout, func(p *PlayerInfo) {
			m.mu.Lock()
			fresh := !m.seen[p.Addr()]
			m.seen[p.Addr()] = true
			m.mu.Unlock()
			if !fresh {
				return
			}

			log.Printf("Discovered player: %s at %s", p.Name, p.Addr())
			select {
			case m.players <- p:
			case <-m.ctx.Done():
			}
		})
	}
}

// query runs one mDNS round, calling found for each answer
func (m *Manager) query(timeout time.Duration, found func(*PlayerInfo)) {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if p := toPlayer(entry); p != nil {
				found(p)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true
	if err := mdns.Query(params); err != nil {
		log.Printf("mDNS query failed: %v", err)
	}
	close(entries)
	<-done
}

// Discover runs a single query round and returns what answered
func Discover(timeout time.Duration) []*PlayerInfo {
	m := NewManager(Config{BrowseTimeout: timeout})
	defer m.Stop()

	var out []*PlayerInfo
	m.query(timeout, func(p *PlayerInfo) {
		for _, have := range out {
			if have.Addr() == p.Addr() {
				return
			}
		}
		out = append(out, p)
	})
	return out
}

// Players returns the channel of discovered players
func (m *Manager) Players() <-chan *PlayerInfo {
	return m.players
}

// Stop ends advertisement and browsing
func (m *Manager) Stop() {
	m.cancel()

	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
}

func txtRecords(path string) []string {
	if path == "" {
		path = "/beatmix"
	}
	return []string{"path=" + path, "version=1"}
}

// toPlayer converts an answer, ignoring entries without an IPv4 address
func toPlayer(entry *mdns.ServiceEntry) *PlayerInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	p := &PlayerInfo{
		Name: instanceName(entry.Name),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: "/beatmix",
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok && v != "" {
			p.Path = v
		}
	}
	return p
}

// instanceName strips the service suffix, "Den._beatmix._tcp.local." -> "Den"
func instanceName(name string) string {
	if i := strings.Index(name, "."+ServiceType); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, `\ `, " ")
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
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
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
