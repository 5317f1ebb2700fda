// Package controller talks to a local UniFi-style network controller:
// family detection, session lifecycle, and the authenticated operations
// the rest of Warden is built on.
package controller

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Family identifies which of the two URL-path conventions a controller
// speaks. Detected once per controller URL, cached for the session's
// lifetime.
type Family string

const (
	// FamilyUDM covers UDM/UXG-style controllers: auth at /api/auth/login,
	// site APIs behind /proxy/network.
	FamilyUDM Family = "UDM_STYLE"

	// FamilyLegacy covers Cloud Key and self-hosted controllers: auth at
	// /api/login, site APIs directly under /api.
	FamilyLegacy Family = "LEGACY_STYLE"
)

// DefaultSessionTTL bounds sessions whose auth material carries no
// expiry of its own.
const DefaultSessionTTL = 24 * time.Hour

// AuthMaterial is the credential state captured at login.
type AuthMaterial struct {
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token,omitempty"`
}

// Session is one authenticated connection to a controller. Persisted as
// a single JSON blob; either fully populated or absent, never partial.
type Session struct {
	ControllerURL string       `json:"controller_url"`
	Family        Family       `json:"controller_family"`
	Site          string       `json:"site"`
	Auth          AuthMaterial `json:"token_or_cookie"`
	CreatedAt     time.Time    `json:"created_at"`

	// LastValidated is updated on every successful authenticated call.
	// In-memory only; not part of the persisted format.
	LastValidated time.Time `json:"-"`
}

// Complete reports whether all auth material is present. Incomplete
// sessions are never persisted or reused.
func (s *Session) Complete() bool {
	return s != nil &&
		s.ControllerURL != "" &&
		s.Family != "" &&
		s.Site != "" &&
		len(s.Auth.Cookies) > 0
}

// ExpiresAt returns the session deadline. UDM controllers issue the TOKEN
// cookie as a JWT whose exp claim is authoritative; sessions without one
// fall back to DefaultSessionTTL from creation.
func (s *Session) ExpiresAt() time.Time {
	if tok := s.Auth.Cookies["TOKEN"]; tok != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err == nil {
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				return exp.Time
			}
		}
	}
	return s.CreatedAt.Add(DefaultSessionTTL)
}

// Expired reports whether the session deadline has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Client is a network client as reported by the controller. Sourced
// fresh on every read, never cached across operations.
type Client struct {
	ID           string `json:"_id,omitempty"`
	MAC          string `json:"mac"`
	Name         string `json:"name,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	IP           string `json:"ip,omitempty"`
	Network      string `json:"network,omitempty"`
	ESSID        string `json:"essid,omitempty"`
	OUI          string `json:"oui,omitempty"`
	IsWired      bool   `json:"is_wired"`
	IsGuest      bool   `json:"is_guest,omitempty"`
	Blocked      bool   `json:"blocked,omitempty"`
	LastSeen     int64  `json:"last_seen,omitempty"`
	APMAC        string `json:"ap_mac,omitempty"`
	UplinkName   string `json:"last_uplink_name,omitempty"`
	Satisfaction *int   `json:"satisfaction,omitempty"`

	// Online is derived during snapshot assembly: true when the client
	// appears in the active listing.
	Online bool `json:"-"`
}

// ConnectionType returns "wired" or "wireless".
func (c *Client) ConnectionType() string {
	if c.IsWired {
		return "wired"
	}
	return "wireless"
}

// NetworkName returns the SSID for wireless clients, the network name
// otherwise.
func (c *Client) NetworkName() string {
	if c.ESSID != "" {
		return c.ESSID
	}
	return c.Network
}

// DisplayName returns the friendliest available identifier.
func (c *Client) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Hostname != "" {
		return c.Hostname
	}
	return c.MAC
}

// Device is controller-managed network gear (APs, switches, gateways).
type Device struct {
	ID      string `json:"_id,omitempty"`
	MAC     string `json:"mac"`
	Name    string `json:"name,omitempty"`
	Model   string `json:"model,omitempty"`
	Type    string `json:"type,omitempty"`
	IP      string `json:"ip,omitempty"`
	Version string `json:"version,omitempty"`
	Adopted bool   `json:"adopted"`
	State   int    `json:"state"`
}

// NetworkConf is one configured network (VLAN/subnet).
type NetworkConf struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Purpose     string `json:"purpose,omitempty"`
	Subnet      string `json:"ip_subnet,omitempty"`
	VLAN        int    `json:"vlan,omitempty"`
	Enabled     bool   `json:"enabled"`
	IsNAT       bool   `json:"is_nat,omitempty"`
	DHCPEnabled bool   `json:"dhcpd_enabled,omitempty"`
}

// Event is one controller event log entry.
type Event struct {
	ID        string `json:"_id,omitempty"`
	Key       string `json:"key,omitempty"`
	Message   string `json:"msg,omitempty"`
	Datetime  string `json:"datetime,omitempty"`
	Time      int64  `json:"time,omitempty"`
	Subsystem string `json:"subsystem,omitempty"`
}

// HealthStatus is one subsystem entry from the site health report.
type HealthStatus struct {
	Subsystem string `json:"subsystem"`
	Status    string `json:"status"`
	NumUser   int    `json:"num_user,omitempty"`
	NumGuest  int    `json:"num_guest,omitempty"`
	NumAP     int    `json:"num_ap,omitempty"`
}

// apiResponse is the controller's response envelope.
type apiResponse struct {
	Meta apiMeta         `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type apiMeta struct {
	RC  string `json:"rc"`
	Msg string `json:"msg,omitempty"`
}

func (m apiMeta) ok() bool {
	return m.RC == "ok"
}

var bareMACRe = regexp.MustCompile(`^[0-9a-f]{12}$`)

var macSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

// NormalizeMAC canonicalizes any common MAC syntax (colon, dash, dotted,
// bare hex) to lowercase colon-separated form. Non-MAC input is returned
// lowercased with dashes mapped to colons, matching controller behavior.
func NormalizeMAC(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	stripped := macSeparators.Replace(lower)
	if !bareMACRe.MatchString(stripped) {
		return strings.ReplaceAll(lower, "-", ":")
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(stripped[i : i+2])
	}
	return b.String()
}

// IsMAC reports whether s looks like a MAC address in any common syntax.
func IsMAC(s string) bool {
	return bareMACRe.MatchString(macSeparators.Replace(strings.ToLower(strings.TrimSpace(s))))
}
