// Package service holds client-facing conveniences above the raw
// controller operations: identifier resolution, listing filters, and
// count groupings. The CLI and serve layers both build on it.
package service

import (
	"context"
	"fmt"
	"strings"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// Identifier resolves human client references against the controller.
type Identifier struct {
	ctrl controller.Controller
}

// NewIdentifier creates an identifier resolver.
func NewIdentifier(ctrl controller.Controller) *Identifier {
	return &Identifier{ctrl: ctrl}
}

// Resolve turns a MAC (any common syntax) or a display name into one
// client. Name lookup prefers exact matches over substring matches;
// several candidates surface AmbiguousClientError with the candidate
// list, zero candidates ClientNotFoundError. Matching is against the
// display name, falling back to the hostname when no name is set.
func (r *Identifier) Resolve(ctx context.Context, identifier string) (*controller.Client, error) {
	if controller.IsMAC(identifier) {
		return r.ctrl.GetClient(ctx, identifier)
	}

	clients, err := r.ctrl.ListAllClients(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(strings.TrimSpace(identifier))
	var exact, partial []int
	for i := range clients {
		name := clients[i].Name
		if name == "" {
			name = clients[i].Hostname
		}
		if name == "" {
			continue
		}
		name = strings.ToLower(name)
		switch {
		case name == lower:
			exact = append(exact, i)
		case strings.Contains(name, lower):
			partial = append(partial, i)
		}
	}

	// Display names are not unique on a controller, so even an exact
	// match can be ambiguous.
	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return nil, apperrors.ErrClientNotFoundf(identifier)
	case 1:
		c := clients[matches[0]]
		return &c, nil
	default:
		candidates := make([]string, 0, len(matches))
		for _, i := range matches {
			candidates = append(candidates, fmt.Sprintf("%s (%s)", clients[i].DisplayName(), clients[i].MAC))
		}
		return nil, apperrors.ErrClientAmbiguousf(identifier, candidates)
	}
}
