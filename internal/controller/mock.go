package controller

import (
	"context"
	"sync"

	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// Mock implements Controller for testing without a live controller.
type Mock struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	devices  map[string]*Device
	networks []NetworkConf
	events   []Event
	health   []HealthStatus
	calls    map[string]int

	// Err forces every operation to fail when set.
	Err error

	// FailMACs forces per-member action failures.
	FailMACs map[string]error
}

// NewMock creates an empty mock controller.
func NewMock() *Mock {
	return &Mock{
		clients:  make(map[string]*Client),
		devices:  make(map[string]*Device),
		calls:    make(map[string]int),
		FailMACs: make(map[string]error),
	}
}

var _ Controller = (*Mock)(nil)

// Seed populates the mock with clients.
func (m *Mock) Seed(clients []Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range clients {
		c := clients[i]
		c.MAC = NormalizeMAC(c.MAC)
		m.clients[c.MAC] = &c
	}
}

// SeedDevices populates the mock with devices.
func (m *Mock) SeedDevices(devices []Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range devices {
		d := devices[i]
		d.MAC = NormalizeMAC(d.MAC)
		m.devices[d.MAC] = &d
	}
}

// SeedNetworks populates the mock with network configurations.
func (m *Mock) SeedNetworks(networks []NetworkConf) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networks = networks
}

// SeedEvents populates the mock event log.
func (m *Mock) SeedEvents(events []Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = events
}

// SeedHealth populates the mock health report.
func (m *Mock) SeedHealth(health []HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = health
}

// Calls returns how often the named operation ran.
func (m *Mock) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *Mock) begin(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.Err
}

func (m *Mock) ListActiveClients(_ context.Context) ([]Client, error) {
	if err := m.begin("ListActiveClients"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Client
	for _, c := range m.clients {
		if c.Online {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *Mock) ListAllClients(_ context.Context) ([]Client, error) {
	if err := m.begin("ListAllClients"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (m *Mock) GetClient(_ context.Context, mac string) (*Client, error) {
	if err := m.begin("GetClient"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[NormalizeMAC(mac)]
	if !ok {
		return nil, apperrors.ErrClientNotFoundf(NormalizeMAC(mac))
	}
	out := *c
	return &out, nil
}

func (m *Mock) BlockClient(_ context.Context, mac string) error {
	return m.setBlocked("BlockClient", mac, true)
}

func (m *Mock) UnblockClient(_ context.Context, mac string) error {
	return m.setBlocked("UnblockClient", mac, false)
}

func (m *Mock) KickClient(_ context.Context, mac string) error {
	if err := m.begin("KickClient"); err != nil {
		return err
	}
	mac = NormalizeMAC(mac)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailMACs[mac]; err != nil {
		return err
	}
	c, ok := m.clients[mac]
	if !ok {
		return apperrors.ErrClientNotFoundf(mac)
	}
	c.Online = false
	return nil
}

func (m *Mock) setBlocked(op, mac string, blocked bool) error {
	if err := m.begin(op); err != nil {
		return err
	}
	mac = NormalizeMAC(mac)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailMACs[mac]; err != nil {
		return err
	}
	c, ok := m.clients[mac]
	if !ok {
		return apperrors.ErrClientNotFoundf(mac)
	}
	c.Blocked = blocked
	return nil
}

func (m *Mock) ListDevices(_ context.Context) ([]Device, error) {
	if err := m.begin("ListDevices"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Device
	for _, d := range m.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (m *Mock) RestartDevice(_ context.Context, mac string) error {
	if err := m.begin("RestartDevice"); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.devices[NormalizeMAC(mac)]; !ok {
		return apperrors.NotFound(apperrors.CodeDeviceNotFound, "device not found")
	}
	return nil
}

func (m *Mock) SetLocate(_ context.Context, mac string, _ bool) error {
	if err := m.begin("SetLocate"); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.devices[NormalizeMAC(mac)]; !ok {
		return apperrors.NotFound(apperrors.CodeDeviceNotFound, "device not found")
	}
	return nil
}

func (m *Mock) ListNetworks(_ context.Context) ([]NetworkConf, error) {
	if err := m.begin("ListNetworks"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]NetworkConf(nil), m.networks...), nil
}

func (m *Mock) ListEvents(_ context.Context, limit int) ([]Event, error) {
	if err := m.begin("ListEvents"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := append([]Event(nil), m.events...)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *Mock) Health(_ context.Context) ([]HealthStatus, error) {
	if err := m.begin("Health"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HealthStatus(nil), m.health...), nil
}
