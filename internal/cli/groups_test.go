package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nc-warden.io/warden/internal/group"
)

func TestParseMemberSpec(t *testing.T) {
	tests := []struct {
		spec string
		want group.Member
	}{
		{"aa:bb:cc:dd:ee:01", group.Member{MAC: "aa:bb:cc:dd:ee:01"}},
		{"aa:bb:cc:dd:ee:01=tablet", group.Member{MAC: "aa:bb:cc:dd:ee:01", Alias: "tablet"}},
		{" aa:bb:cc:dd:ee:01 = tablet ", group.Member{MAC: "aa:bb:cc:dd:ee:01", Alias: "tablet"}},
	}
	for _, tt := range tests {
		if got := parseMemberSpec(tt.spec); got != tt.want {
			t.Fatalf("parseMemberSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
	}
}

func TestParseRuleSpec(t *testing.T) {
	r, err := parseRuleSpec("name:cam*")
	if err != nil {
		t.Fatalf("parseRuleSpec: %v", err)
	}
	if r.Type != group.RuleName || r.Pattern != "cam*" {
		t.Fatalf("rule = %+v, want name:cam*", r)
	}

	// ip_range patterns carry dashes and must survive splitting on the
	// first colon only.
	r, err = parseRuleSpec("ip_range:192.168.40.0/24")
	if err != nil {
		t.Fatalf("parseRuleSpec: %v", err)
	}
	if r.Type != group.RuleIPRange || r.Pattern != "192.168.40.0/24" {
		t.Fatalf("rule = %+v, want ip_range:192.168.40.0/24", r)
	}

	if _, err := parseRuleSpec("no-colon"); err == nil {
		t.Fatal("expected an error for a spec without a colon")
	}
	if _, err := parseRuleSpec("color:blue"); err == nil {
		t.Fatal("expected an error for an unknown rule type")
	}
}

func TestGroupLifecycle(t *testing.T) {
	dir := t.TempDir()

	out := runOK(t, dir, "group", "create", "Kids Devices",
		"--desc", "bedtime enforcement",
		"--member", "AA:BB:CC:DD:EE:01=tablet")
	if !strings.Contains(out, `Created static group "Kids Devices" (id kids-devices)`) {
		t.Fatalf("create output = %q", out)
	}

	out = runOK(t, dir, "group", "list")
	if !strings.Contains(out, "kids-devices") || !strings.Contains(out, "1 member(s)") {
		t.Fatalf("list output = %q", out)
	}

	out = runOK(t, dir, "group", "add", "kids-devices", "aa:bb:cc:dd:ee:02")
	if !strings.Contains(out, "Added 1 member(s)") || !strings.Contains(out, "(2 total)") {
		t.Fatalf("add output = %q", out)
	}

	// Static groups resolve from the stored list, so no controller
	// configuration is needed.
	out = runOK(t, dir, "group", "show", "kids-devices", "--resolve")
	if !strings.Contains(out, "aa:bb:cc:dd:ee:01") || !strings.Contains(out, "aa:bb:cc:dd:ee:02") {
		t.Fatalf("resolved show output = %q", out)
	}

	out = runOK(t, dir, "group", "alias", "kids-devices", "aa:bb:cc:dd:ee:02", "spare")
	if !strings.Contains(out, `Aliased aa:bb:cc:dd:ee:02 as "spare"`) {
		t.Fatalf("alias output = %q", out)
	}

	out = runOK(t, dir, "group", "remove", "kids-devices", "tablet", "spare")
	if !strings.Contains(out, "Removed 2 member(s)") || !strings.Contains(out, "(0 left)") {
		t.Fatalf("remove output = %q", out)
	}

	out = runOK(t, dir, "group", "delete", "kids-devices")
	if !strings.Contains(out, `Deleted group "Kids Devices"`) {
		t.Fatalf("delete output = %q", out)
	}

	if _, err := runCLI(t, dir, nil, "group", "show", "kids-devices"); err == nil {
		t.Fatal("expected an error showing a deleted group")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %q, want a not-found message", err)
	}
}

func TestGroupCreateInfersAutoFromRules(t *testing.T) {
	dir := t.TempDir()

	out := runOK(t, dir, "group", "create", "Cameras", "--rule", "name:cam*")
	if !strings.Contains(out, `Created auto group "Cameras"`) {
		t.Fatalf("create output = %q, want auto kind inferred from rules", out)
	}

	out = runOK(t, dir, "group", "show", "cameras")
	if !strings.Contains(out, "name: cam*") {
		t.Fatalf("show output = %q, want the rule listed", out)
	}
}

func TestGroupResolveAutoNeedsController(t *testing.T) {
	dir := t.TempDir()
	runOK(t, dir, "group", "create", "Cameras", "--rule", "name:cam*")

	_, err := runCLI(t, dir, nil, "group", "show", "cameras", "--resolve")
	if err == nil {
		t.Fatal("expected an error resolving an auto group without a controller")
	}
	if !strings.Contains(err.Error(), "controller.url") {
		t.Fatalf("error = %q, want it to point at controller.url", err)
	}
}

func TestGroupEdit(t *testing.T) {
	dir := t.TempDir()
	runOK(t, dir, "group", "create", "IoT", "--member", "aa:bb:cc:dd:ee:10")

	out := runOK(t, dir, "group", "edit", "iot", "--name", "IoT Fleet", "--desc", "smart plugs")
	if !strings.Contains(out, `Updated group "IoT Fleet" (id iot)`) {
		t.Fatalf("edit output = %q, want rename with a stable id", out)
	}

	if _, err := runCLI(t, dir, nil, "group", "edit", "iot"); err == nil {
		t.Fatal("expected an error when edit changes nothing")
	}
}

func TestGroupExportImportRoundTrip(t *testing.T) {
	src := t.TempDir()
	runOK(t, src, "group", "create", "Kids Devices", "--member", "aa:bb:cc:dd:ee:01")
	runOK(t, src, "group", "create", "Cameras", "--rule", "name:cam*")

	exported := runOK(t, src, "group", "export")
	if !strings.Contains(exported, "kids-devices") || !strings.Contains(exported, "cameras") {
		t.Fatalf("export output = %q", exported)
	}

	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte(exported), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	out := runOK(t, dst, "group", "import", path)
	if !strings.Contains(out, "Imported 2 group(s): 2 added, 0 updated, 0 removed") {
		t.Fatalf("import output = %q", out)
	}

	out = runOK(t, dst, "group", "list")
	if !strings.Contains(out, "kids-devices") || !strings.Contains(out, "cameras") {
		t.Fatalf("list after import = %q", out)
	}
}

func TestGroupImportReplaceFromStdin(t *testing.T) {
	dir := t.TempDir()
	runOK(t, dir, "group", "create", "Keep", "--member", "aa:bb:cc:dd:ee:01")
	runOK(t, dir, "group", "create", "Drop")

	doc := `groups:
  - id: keep
    name: Keep
    kind: static
    members:
      - mac: aa:bb:cc:dd:ee:01
      - mac: aa:bb:cc:dd:ee:02
`
	out, err := runCLI(t, dir, strings.NewReader(doc), "group", "import", "-", "--replace")
	if err != nil {
		t.Fatalf("import --replace: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 1 group(s): 0 added, 1 updated, 1 removed") {
		t.Fatalf("import output = %q", out)
	}

	if _, err := runCLI(t, dir, nil, "group", "show", "drop"); err == nil {
		t.Fatal("expected the replaced-away group to be gone")
	}

	out = runOK(t, dir, "group", "show", "keep")
	if !strings.Contains(out, "aa:bb:cc:dd:ee:02") {
		t.Fatalf("show output = %q, want the imported member present", out)
	}
}
