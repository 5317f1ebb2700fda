// Package group owns group definitions: the pattern matcher and rule
// evaluator that drive auto groups, the persisted store for static and
// auto groups, and the resolver that turns a group reference into
// member MACs.
package group

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one compiled membership pattern. The syntax, decided per
// comma-separated alternative:
//
//	~<regex>   case-insensitive regular expression
//	a*b        wildcard, * matches any run of characters
//	text       case-insensitive equality
//
// The pattern matches when ANY alternative matches. Compilation errors
// surface at rule-creation time; matching never fails.
type Pattern struct {
	raw  string
	alts []func(string) bool
}

// CompilePattern parses and compiles a pattern string.
func CompilePattern(raw string) (*Pattern, error) {
	p := &Pattern{raw: raw}
	for _, alt := range strings.Split(raw, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		fn, err := compileAlt(alt)
		if err != nil {
			return nil, err
		}
		p.alts = append(p.alts, fn)
	}
	if len(p.alts) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return p, nil
}

func compileAlt(alt string) (func(string) bool, error) {
	if rest, ok := strings.CutPrefix(alt, "~"); ok {
		re, err := regexp.Compile("(?i)" + rest)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", rest, err)
		}
		return re.MatchString, nil
	}

	if !strings.Contains(alt, "*") {
		return func(s string) bool { return strings.EqualFold(s, alt) }, nil
	}

	// Pure prefix/suffix/contains wildcards take the cheap path; the
	// general form compiles to an anchored regex.
	lower := strings.ToLower(alt)
	switch {
	case strings.Count(alt, "*") == 1 && strings.HasSuffix(alt, "*"):
		stem := strings.TrimSuffix(lower, "*")
		return func(s string) bool { return strings.HasPrefix(strings.ToLower(s), stem) }, nil
	case strings.Count(alt, "*") == 1 && strings.HasPrefix(alt, "*"):
		stem := strings.TrimPrefix(lower, "*")
		return func(s string) bool { return strings.HasSuffix(strings.ToLower(s), stem) }, nil
	case strings.Count(alt, "*") == 2 && strings.HasPrefix(alt, "*") && strings.HasSuffix(alt, "*"):
		stem := strings.Trim(lower, "*")
		if !strings.Contains(stem, "*") {
			return func(s string) bool { return strings.Contains(strings.ToLower(s), stem) }, nil
		}
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	for i, chunk := range strings.Split(alt, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(chunk))
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard %q: %w", alt, err)
	}
	return re.MatchString, nil
}

// Match reports whether the candidate matches. Empty candidates (blank
// client names are common) never match and never error.
func (p *Pattern) Match(candidate string) bool {
	if candidate == "" {
		return false
	}
	for _, match := range p.alts {
		if match(candidate) {
			return true
		}
	}
	return false
}

// String returns the original pattern text.
func (p *Pattern) String() string {
	return p.raw
}
