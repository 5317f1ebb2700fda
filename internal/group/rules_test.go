package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

func sampleClient() controller.Client {
	return controller.Client{
		MAC:      "aa:bb:cc:dd:ee:01",
		Name:     "Kids iPad",
		Hostname: "ipad-kids",
		IP:       "192.168.40.23",
		ESSID:    "HomeWiFi",
		OUI:      "Apple, Inc.",
		Online:   true,
	}
}

func TestEvaluatorSingleRules(t *testing.T) {
	tests := []struct {
		name   string
		rule   Rule
		mutate func(c *controller.Client)
		want   bool
	}{
		{"vendor wildcard", Rule{RuleVendor, "*apple*"}, nil, true},
		{"vendor miss", Rule{RuleVendor, "*samsung*"}, nil, false},
		{"name exact", Rule{RuleName, "kids ipad"}, nil, true},
		{"name blank never matches", Rule{RuleName, "*"},
			func(c *controller.Client) { c.Name = "" }, false},
		{"hostname prefix", Rule{RuleHostname, "ipad*"}, nil, true},
		{"network", Rule{RuleNetwork, "HomeWiFi"}, nil, true},
		{"network falls back to wired network name", Rule{RuleNetwork, "LAN"},
			func(c *controller.Client) { c.ESSID = ""; c.Network = "LAN"; c.IsWired = true }, true},
		{"single ip", Rule{RuleIPRange, "192.168.40.23"}, nil, true},
		{"single ip miss", Rule{RuleIPRange, "192.168.40.24"}, nil, false},
		{"cidr", Rule{RuleIPRange, "192.168.40.0/24"}, nil, true},
		{"cidr miss", Rule{RuleIPRange, "192.168.50.0/24"}, nil, false},
		{"dash range", Rule{RuleIPRange, "192.168.40.10-192.168.40.30"}, nil, true},
		{"dash range boundary", Rule{RuleIPRange, "192.168.40.23-192.168.40.23"}, nil, true},
		{"dash range miss", Rule{RuleIPRange, "192.168.40.24-192.168.40.30"}, nil, false},
		{"ip or list", Rule{RuleIPRange, "10.0.0.0/8, 192.168.40.0/24"}, nil, true},
		{"no ip never matches", Rule{RuleIPRange, "0.0.0.0/0"},
			func(c *controller.Client) { c.IP = "" }, false},
		{"mac prefix fragment", Rule{RuleMACPrefix, "aa:bb:cc"}, nil, true},
		{"mac prefix dashes", Rule{RuleMACPrefix, "AA-BB-CC"}, nil, true},
		{"mac prefix miss", Rule{RuleMACPrefix, "aa:bb:cd"}, nil, false},
		{"mac wildcard", Rule{RuleMACPrefix, "*:ee:01"}, nil, true},
		{"connection type wireless", Rule{RuleConnType, "wireless"}, nil, true},
		{"connection type wired miss", Rule{RuleConnType, "wired"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleClient()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			eval, err := NewEvaluator([]Rule{tt.rule})
			require.NoError(t, err)
			assert.Equal(t, tt.want, eval.Matches(&c))
		})
	}
}

// Every rule present must match: vendor matching is not enough when the
// connection type differs.
func TestEvaluatorANDSemantics(t *testing.T) {
	eval, err := NewEvaluator([]Rule{
		{Type: RuleVendor, Pattern: "*Apple*"},
		{Type: RuleConnType, Pattern: "wireless"},
	})
	require.NoError(t, err)

	wireless := sampleClient()
	assert.True(t, eval.Matches(&wireless))

	wired := sampleClient()
	wired.IsWired = true
	assert.False(t, eval.Matches(&wired))
}

func TestNewEvaluatorRejects(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"empty rule set", nil},
		{"unknown type", []Rule{{Type: "color", Pattern: "blue"}}},
		{"duplicate type", []Rule{
			{Type: RuleVendor, Pattern: "apple"},
			{Type: RuleVendor, Pattern: "samsung"},
		}},
		{"broken regex", []Rule{{Type: RuleName, Pattern: "~["}}},
		{"bad cidr", []Rule{{Type: RuleIPRange, Pattern: "192.168.1.0/33"}}},
		{"bad range order", []Rule{{Type: RuleIPRange, Pattern: "192.168.1.50-192.168.1.10"}}},
		{"bad range host", []Rule{{Type: RuleIPRange, Pattern: "192.168.1.10-banana"}}},
		{"bad connection type", []Rule{{Type: RuleConnType, Pattern: "bluetooth"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(tt.rules)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRule))
		})
	}
}

func TestParseRuleType(t *testing.T) {
	rt, err := ParseRuleType(" Vendor ")
	require.NoError(t, err)
	assert.Equal(t, RuleVendor, rt)

	_, err = ParseRuleType("colour")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRule))
}
