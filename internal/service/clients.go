package service

import (
	"sort"
	"strings"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// Filter narrows a client listing. Zero value passes everything.
type Filter struct {
	// Network keeps clients whose network/SSID name contains the value
	// (case-insensitive).
	Network string
	// Wired/Wireless keep only that connection type. Setting both is
	// rejected.
	Wired    bool
	Wireless bool
	// Blocked keeps only blocked clients.
	Blocked bool
	// Guest keeps only guest clients.
	Guest bool
}

// Apply filters a client slice, preserving order.
func (f Filter) Apply(clients []controller.Client) ([]controller.Client, error) {
	if f.Wired && f.Wireless {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "wired and wireless filters are mutually exclusive")
	}

	network := strings.ToLower(f.Network)
	out := make([]controller.Client, 0, len(clients))
	for _, c := range clients {
		if f.Wired && !c.IsWired {
			continue
		}
		if f.Wireless && c.IsWired {
			continue
		}
		if f.Blocked && !c.Blocked {
			continue
		}
		if f.Guest && !c.IsGuest {
			continue
		}
		if network != "" && !strings.Contains(strings.ToLower(networkKey(&c)), network) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// CountBy enumerates the count groupings.
type CountBy string

const (
	CountByType       CountBy = "type"
	CountByNetwork    CountBy = "network"
	CountByVendor     CountBy = "vendor"
	CountByAP         CountBy = "ap"
	CountByExperience CountBy = "experience"
)

// ParseCountBy validates a grouping name.
func ParseCountBy(s string) (CountBy, error) {
	by := CountBy(strings.ToLower(strings.TrimSpace(s)))
	switch by {
	case CountByType, CountByNetwork, CountByVendor, CountByAP, CountByExperience:
		return by, nil
	default:
		return "", apperrors.BadRequest(apperrors.CodeValidationFailed,
			"invalid grouping "+s+": valid options are type, network, vendor, ap, experience")
	}
}

// CountClients tallies clients per grouping key.
func CountClients(clients []controller.Client, by CountBy) map[string]int {
	counts := make(map[string]int)
	for i := range clients {
		counts[countKey(&clients[i], by)]++
	}
	return counts
}

// SortedCountKeys returns the grouping keys in stable display order.
func SortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func countKey(c *controller.Client, by CountBy) string {
	switch by {
	case CountByType:
		if c.IsWired {
			return "Wired"
		}
		return "Wireless"
	case CountByNetwork:
		if key := networkKey(c); key != "" {
			return key
		}
		return "(none)"
	case CountByVendor:
		if c.OUI != "" {
			return c.OUI
		}
		return "(unknown)"
	case CountByAP:
		switch {
		case c.IsWired:
			return "(wired)"
		case c.UplinkName != "":
			return c.UplinkName
		case c.APMAC != "":
			return c.APMAC
		default:
			return "(unknown)"
		}
	case CountByExperience:
		return experienceCategory(c.Satisfaction)
	default:
		return "(unknown)"
	}
}

// networkKey prefers the wired network name, then the SSID.
func networkKey(c *controller.Client) string {
	if c.Network != "" {
		return c.Network
	}
	return c.ESSID
}

func experienceCategory(satisfaction *int) string {
	switch {
	case satisfaction == nil:
		return "Unknown"
	case *satisfaction >= 80:
		return "Good (80%+)"
	case *satisfaction >= 50:
		return "Fair (50-79%)"
	default:
		return "Poor (<50%)"
	}
}
