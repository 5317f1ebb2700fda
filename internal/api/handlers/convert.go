// View types and conversions between core structs and their serve-mode
// JSON shapes. Wire types from the controller package are not exposed
// directly: the client view carries the derived online flag and hides
// controller-internal fields.

package handlers

import (
	"time"

	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
)

// Client is the serve-mode view of a controller client.
type Client struct {
	MAC            string `json:"mac"`
	Name           string `json:"name,omitempty"`
	Hostname       string `json:"hostname,omitempty"`
	IP             string `json:"ip,omitempty"`
	Network        string `json:"network,omitempty"`
	ConnectionType string `json:"connection_type"`
	Vendor         string `json:"vendor,omitempty"`
	Guest          bool   `json:"guest,omitempty"`
	Blocked        bool   `json:"blocked"`
	Online         bool   `json:"online"`
}

// ClientList wraps a client listing.
type ClientList struct {
	Items []Client `json:"items"`
	Total int      `json:"total"`
}

// CountResult reports client counts per grouping key.
type CountResult struct {
	By     string         `json:"by"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// Status reports the session lifecycle and controller configuration.
type Status struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	ControllerURL string     `json:"controller_url,omitempty"`
	Site          string     `json:"site,omitempty"`
	Family        string     `json:"controller_family,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// GroupList wraps a group listing.
type GroupList struct {
	Items []group.Group `json:"items"`
	Total int           `json:"total"`
}

// MembersChanged reports a membership mutation.
type MembersChanged struct {
	Changed int          `json:"changed"`
	Group   *group.Group `json:"group"`
}

// Resolution is a group resolved to its current member MACs.
type Resolution struct {
	GroupID string   `json:"group_id"`
	Kind    string   `json:"kind"`
	MACs    []string `json:"macs"`
	Count   int      `json:"count"`
}

// GroupExport is the import/export document. The same shape is written
// by `warden group export`.
type GroupExport struct {
	Groups []group.Group `json:"groups" yaml:"groups"`
}

// DeviceList wraps a device listing.
type DeviceList struct {
	Items []controller.Device `json:"items"`
	Total int                 `json:"total"`
}

// DeviceAction acknowledges a device command.
type DeviceAction struct {
	MAC      string `json:"mac"`
	Action   string `json:"action"`
	Locating *bool  `json:"locating,omitempty"`
}

// NetworkList wraps a network listing.
type NetworkList struct {
	Items []controller.NetworkConf `json:"items"`
	Total int                      `json:"total"`
}

// EventList wraps an event listing.
type EventList struct {
	Items []controller.Event `json:"items"`
	Total int                `json:"total"`
}

// HealthList wraps the controller subsystem health report.
type HealthList struct {
	Items []controller.HealthStatus `json:"items"`
	Total int                       `json:"total"`
}

func clientToAPI(c *controller.Client) Client {
	return Client{
		MAC:            c.MAC,
		Name:           c.Name,
		Hostname:       c.Hostname,
		IP:             c.IP,
		Network:        c.NetworkName(),
		ConnectionType: c.ConnectionType(),
		Vendor:         c.OUI,
		Guest:          c.IsGuest,
		Blocked:        c.Blocked,
		Online:         c.Online,
	}
}

func clientsToAPI(clients []controller.Client) []Client {
	items := make([]Client, 0, len(clients))
	for i := range clients {
		items = append(items, clientToAPI(&clients[i]))
	}
	return items
}
