package group

import (
	"fmt"
	"net/netip"
	"strings"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// RuleType enumerates the closed set of auto-group rule kinds.
type RuleType string

const (
	RuleVendor    RuleType = "vendor"
	RuleName      RuleType = "name"
	RuleHostname  RuleType = "hostname"
	RuleNetwork   RuleType = "network"
	RuleIPRange   RuleType = "ip_range"
	RuleMACPrefix RuleType = "mac_prefix"
	RuleConnType  RuleType = "connection_type"
)

// ruleTypes is the declaration order used for stable listings.
var ruleTypes = []RuleType{
	RuleVendor, RuleName, RuleHostname, RuleNetwork,
	RuleIPRange, RuleMACPrefix, RuleConnType,
}

// ParseRuleType validates a rule type name.
func ParseRuleType(s string) (RuleType, error) {
	rt := RuleType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ruleTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", apperrors.ErrInvalidRulef(s, "", "unknown rule type")
}

// Rule is one typed membership constraint of an auto group. The pattern
// syntax depends on the type: vendor/name/hostname/network/mac_prefix
// take matcher patterns, ip_range takes single IPs, dash ranges, or
// CIDRs (containment, not pattern syntax), and connection_type takes
// exactly "wired" or "wireless".
type Rule struct {
	Type    RuleType `json:"type" yaml:"type"`
	Pattern string   `json:"pattern" yaml:"pattern"`
}

// Evaluator is the compiled membership predicate of one auto group:
// every rule present must match (AND across types, OR within one
// rule's comma-separated alternatives).
type Evaluator struct {
	rules []compiledRule
}

type compiledRule struct {
	typ   RuleType
	match func(*controller.Client) bool
}

// NewEvaluator validates and compiles a rule set. An empty set is a
// configuration error: it would otherwise silently match nothing.
func NewEvaluator(rules []Rule) (*Evaluator, error) {
	if len(rules) == 0 {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRule, "auto group needs at least one rule")
	}

	e := &Evaluator{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[RuleType]bool, len(rules))
	for _, r := range rules {
		typ, err := ParseRuleType(string(r.Type))
		if err != nil {
			return nil, err
		}
		if seen[typ] {
			// OR within one type is spelled as a comma list, so a
			// second rule of the same type is almost always a mistake.
			return nil, apperrors.ErrInvalidRulef(string(typ), r.Pattern, "duplicate rule type")
		}
		seen[typ] = true

		match, err := compileRule(typ, r.Pattern)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiledRule{typ: typ, match: match})
	}
	return e, nil
}

// ValidateRules compiles a rule set purely for its side effect of
// surfacing InvalidRuleError at creation time.
func ValidateRules(rules []Rule) error {
	_, err := NewEvaluator(rules)
	return err
}

// Matches reports whether the client satisfies every rule.
func (e *Evaluator) Matches(c *controller.Client) bool {
	for _, r := range e.rules {
		if !r.match(c) {
			return false
		}
	}
	return true
}

func compileRule(typ RuleType, pattern string) (func(*controller.Client) bool, error) {
	switch typ {
	case RuleVendor:
		return compileFieldRule(typ, pattern, func(c *controller.Client) string { return c.OUI })
	case RuleName:
		return compileFieldRule(typ, pattern, func(c *controller.Client) string { return c.Name })
	case RuleHostname:
		return compileFieldRule(typ, pattern, func(c *controller.Client) string { return c.Hostname })
	case RuleNetwork:
		return compileFieldRule(typ, pattern, func(c *controller.Client) string { return c.NetworkName() })
	case RuleIPRange:
		return compileIPRule(pattern)
	case RuleMACPrefix:
		return compileMACRule(pattern)
	case RuleConnType:
		return compileConnTypeRule(pattern)
	default:
		return nil, apperrors.ErrInvalidRulef(string(typ), pattern, "unknown rule type")
	}
}

func compileFieldRule(typ RuleType, pattern string, field func(*controller.Client) string) (func(*controller.Client) bool, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return nil, apperrors.ErrInvalidRulef(string(typ), pattern, err.Error())
	}
	return func(c *controller.Client) bool { return p.Match(field(c)) }, nil
}

// ipSpan is one parsed alternative of an ip_range rule.
type ipSpan struct {
	prefix *netip.Prefix
	lo, hi netip.Addr
}

func (s ipSpan) contains(addr netip.Addr) bool {
	if s.prefix != nil {
		return s.prefix.Contains(addr)
	}
	return s.lo.Compare(addr) <= 0 && addr.Compare(s.hi) <= 0
}

func compileIPRule(pattern string) (func(*controller.Client) bool, error) {
	var spans []ipSpan
	for _, alt := range strings.Split(pattern, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		span, err := parseIPSpan(alt)
		if err != nil {
			return nil, apperrors.ErrInvalidRulef(string(RuleIPRange), pattern, err.Error())
		}
		spans = append(spans, span)
	}
	if len(spans) == 0 {
		return nil, apperrors.ErrInvalidRulef(string(RuleIPRange), pattern, "empty pattern")
	}

	return func(c *controller.Client) bool {
		addr, err := netip.ParseAddr(c.IP)
		if err != nil {
			// Offline clients have no IP; a containment rule simply
			// does not match them.
			return false
		}
		for _, span := range spans {
			if span.contains(addr) {
				return true
			}
		}
		return false
	}, nil
}

func parseIPSpan(s string) (ipSpan, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return ipSpan{}, fmt.Errorf("invalid CIDR %q", s)
		}
		prefix = prefix.Masked()
		return ipSpan{prefix: &prefix}, nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		loAddr, err := netip.ParseAddr(strings.TrimSpace(lo))
		if err != nil {
			return ipSpan{}, fmt.Errorf("invalid range start %q", lo)
		}
		hiAddr, err := netip.ParseAddr(strings.TrimSpace(hi))
		if err != nil {
			return ipSpan{}, fmt.Errorf("invalid range end %q", hi)
		}
		if hiAddr.Compare(loAddr) < 0 {
			return ipSpan{}, fmt.Errorf("range %q ends before it starts", s)
		}
		return ipSpan{lo: loAddr, hi: hiAddr}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ipSpan{}, fmt.Errorf("invalid IP %q", s)
	}
	return ipSpan{lo: addr, hi: addr}, nil
}

func compileMACRule(pattern string) (func(*controller.Client) bool, error) {
	type macAlt struct {
		prefix string
		match  func(string) bool
	}
	var alts []macAlt
	for _, alt := range strings.Split(pattern, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if !strings.ContainsAny(alt, "*~") {
			// A plain fragment is a prefix of the canonical MAC form.
			alts = append(alts, macAlt{prefix: normalizeMACFragment(alt)})
			continue
		}
		p, err := CompilePattern(alt)
		if err != nil {
			return nil, apperrors.ErrInvalidRulef(string(RuleMACPrefix), pattern, err.Error())
		}
		alts = append(alts, macAlt{match: p.Match})
	}
	if len(alts) == 0 {
		return nil, apperrors.ErrInvalidRulef(string(RuleMACPrefix), pattern, "empty pattern")
	}

	return func(c *controller.Client) bool {
		mac := controller.NormalizeMAC(c.MAC)
		if mac == "" {
			return false
		}
		for _, alt := range alts {
			if alt.match != nil {
				if alt.match(mac) {
					return true
				}
			} else if strings.HasPrefix(mac, alt.prefix) {
				return true
			}
		}
		return false
	}, nil
}

// normalizeMACFragment lowercases a partial MAC and maps dashes to
// colons, mirroring NormalizeMAC for inputs shorter than a full MAC.
func normalizeMACFragment(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", ":")
}

func compileConnTypeRule(pattern string) (func(*controller.Client) bool, error) {
	want := strings.ToLower(strings.TrimSpace(pattern))
	if want != "wired" && want != "wireless" {
		return nil, apperrors.ErrInvalidRulef(string(RuleConnType), pattern, `must be "wired" or "wireless"`)
	}
	return func(c *controller.Client) bool { return c.ConnectionType() == want }, nil
}
