package group

import (
	"strings"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// Kind distinguishes explicit member lists from rule-driven groups.
type Kind string

const (
	KindStatic Kind = "static"
	KindAuto   Kind = "auto"
)

// Member is one static group entry. The alias is a per-group
// human-friendly handle for removal and display.
type Member struct {
	MAC   string `json:"mac" yaml:"mac"`
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Group is a named addressable set of clients. The ID is a slug derived
// from the name at creation and never changes; renames touch the
// display name only. Exactly one of Members and Rules is populated,
// according to Kind.
type Group struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Members     []Member `json:"members,omitempty" yaml:"members,omitempty"`
	Rules       []Rule   `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// IsStatic reports whether the group carries an explicit member list.
func (g *Group) IsStatic() bool {
	return g.Kind == KindStatic
}

// MemberMACs returns the stored member MACs in canonical form.
func (g *Group) MemberMACs() []string {
	macs := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		macs = append(macs, controller.NormalizeMAC(m.MAC))
	}
	return macs
}

// memberIndex returns the position of the member matching ref (a MAC in
// any syntax, or an alias), or -1.
func (g *Group) memberIndex(ref string) int {
	mac := controller.NormalizeMAC(ref)
	for i, m := range g.Members {
		if controller.NormalizeMAC(m.MAC) == mac {
			return i
		}
		if m.Alias != "" && strings.EqualFold(m.Alias, ref) {
			return i
		}
	}
	return -1
}

// Validate checks structural consistency: ID/name present, kind known,
// members only on static groups (with valid unique MACs and unique
// aliases), rules only on auto groups (compiled to surface
// InvalidRuleError at creation or import, never at match time).
func (g *Group) Validate() error {
	if g.ID == "" || g.ID != Slugify(g.ID) {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "group id must be a slug: "+g.ID)
	}
	if strings.TrimSpace(g.Name) == "" {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "group name must not be empty")
	}

	switch g.Kind {
	case KindStatic:
		if len(g.Rules) > 0 {
			return apperrors.BadRequest(apperrors.CodeValidationFailed, "static group must not carry rules: "+g.ID)
		}
		seenMAC := make(map[string]bool, len(g.Members))
		seenAlias := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			if !controller.IsMAC(m.MAC) {
				return apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid MAC address: "+m.MAC)
			}
			mac := controller.NormalizeMAC(m.MAC)
			if seenMAC[mac] {
				return apperrors.BadRequest(apperrors.CodeValidationFailed, "duplicate member MAC: "+mac)
			}
			seenMAC[mac] = true
			if m.Alias != "" {
				alias := strings.ToLower(m.Alias)
				if seenAlias[alias] {
					return apperrors.BadRequest(apperrors.CodeValidationFailed, "duplicate member alias: "+m.Alias)
				}
				seenAlias[alias] = true
			}
		}
	case KindAuto:
		if len(g.Members) > 0 {
			return apperrors.BadRequest(apperrors.CodeValidationFailed, "auto group must not carry members: "+g.ID)
		}
		if err := ValidateRules(g.Rules); err != nil {
			return err
		}
	default:
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown group kind: "+string(g.Kind))
	}
	return nil
}

// clone returns a deep copy so callers can't mutate stored state.
func (g *Group) clone() *Group {
	out := *g
	out.Members = append([]Member(nil), g.Members...)
	out.Rules = append([]Rule(nil), g.Rules...)
	return &out
}

// Slugify derives the immutable group identifier from a display name:
// lowercase, runs of non-alphanumerics become single dashes.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
