package controller

import (
	"context"
)

// Controller abstracts the authenticated operations of a local network
// controller. Implementations retry a rejected call exactly once after
// re-authentication; a second rejection surfaces AuthenticationError.
type Controller interface {
	// ListActiveClients returns currently connected clients.
	ListActiveClients(ctx context.Context) ([]Client, error)

	// ListAllClients returns every client the controller knows,
	// including offline ones.
	ListAllClients(ctx context.Context) ([]Client, error)

	// GetClient returns one client by MAC, or ClientNotFoundError.
	GetClient(ctx context.Context, mac string) (*Client, error)

	// BlockClient denies a client network access.
	BlockClient(ctx context.Context, mac string) error

	// UnblockClient restores a blocked client's network access.
	UnblockClient(ctx context.Context, mac string) error

	// KickClient forces a client to reconnect.
	KickClient(ctx context.Context, mac string) error

	// ListDevices returns controller-managed network gear.
	ListDevices(ctx context.Context) ([]Device, error)

	// RestartDevice reboots a device by MAC.
	RestartDevice(ctx context.Context, mac string) error

	// SetLocate toggles a device's locate LED.
	SetLocate(ctx context.Context, mac string, enabled bool) error

	// ListNetworks returns the configured networks.
	ListNetworks(ctx context.Context) ([]NetworkConf, error)

	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)

	// Health returns per-subsystem site health.
	Health(ctx context.Context) ([]HealthStatus, error)
}

// Snapshot assembles the client view rules are evaluated against: every
// known client, with live attributes (IP, network) and the online flag
// taken from the active listing when present.
func Snapshot(ctx context.Context, c Controller) ([]Client, error) {
	known, err := c.ListAllClients(ctx)
	if err != nil {
		return nil, err
	}
	active, err := c.ListActiveClients(ctx)
	if err != nil {
		return nil, err
	}

	byMAC := make(map[string]int, len(known))
	merged := make([]Client, 0, len(known)+len(active))
	for _, cl := range known {
		cl.MAC = NormalizeMAC(cl.MAC)
		byMAC[cl.MAC] = len(merged)
		merged = append(merged, cl)
	}
	for _, cl := range active {
		cl.MAC = NormalizeMAC(cl.MAC)
		cl.Online = true
		if i, ok := byMAC[cl.MAC]; ok {
			// Carry the block flag over: stat/sta omits it for
			// entries rest/user reports as blocked.
			if merged[i].Blocked {
				cl.Blocked = true
			}
			if cl.Name == "" {
				cl.Name = merged[i].Name
			}
			merged[i] = cl
		} else {
			byMAC[cl.MAC] = len(merged)
			merged = append(merged, cl)
		}
	}
	return merged, nil
}
