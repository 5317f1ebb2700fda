package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// runCLI executes one command the way a process invocation would: fresh
// command tree, fresh env, shared config dir. Output and errors land in
// the returned string.
func runCLI(t *testing.T, dir string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	e := &env{}
	root := newRootCmd(e)

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(append([]string{"--config-dir", dir}, args...))

	err := root.ExecuteContext(t.Context())
	if e.app != nil {
		e.app.Shutdown()
	}
	return out.String(), err
}

func runOK(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, nil, args...)
	if err != nil {
		t.Fatalf("warden %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestVersionCommand(t *testing.T) {
	out := runOK(t, t.TempDir(), "version")
	if !strings.Contains(out, "warden dev") {
		t.Fatalf("version output = %q, want it to mention the dev build", out)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out := runOK(t, t.TempDir(), "--help")
	for _, name := range []string{"login", "clients", "group", "devices", "serve", "hash-token"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output missing command %q:\n%s", name, out)
		}
	}
}

func TestHashTokenArgument(t *testing.T) {
	out := runOK(t, t.TempDir(), "hash-token", "s3cret")
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("output is not a valid bcrypt hash of the token: %v (hash %q)", err, hash)
	}
}

func TestHashTokenFromStdin(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), strings.NewReader("s3cret\n"), "hash-token")
	if err != nil {
		t.Fatalf("hash-token from stdin: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("output is not a valid bcrypt hash of the token: %v", err)
	}
}

func TestHashTokenRejectsEmpty(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), strings.NewReader("\n"), "hash-token"); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}

func TestStatusNotConfigured(t *testing.T) {
	out := runOK(t, t.TempDir(), "status")
	if !strings.Contains(out, "UNAUTHENTICATED") {
		t.Fatalf("status output = %q, want UNAUTHENTICATED state", out)
	}
	if !strings.Contains(out, "not configured") {
		t.Fatalf("status output = %q, want a not-configured controller line", out)
	}
}

func TestStatusJSONShape(t *testing.T) {
	out := runOK(t, t.TempDir(), "status", "-o", "json")

	var st struct {
		State         string `json:"state"`
		Authenticated bool   `json:"authenticated"`
		ControllerURL string `json:"controller_url"`
	}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("status -o json produced invalid JSON: %v\noutput:\n%s", err, out)
	}
	if st.State != "UNAUTHENTICATED" {
		t.Fatalf("state = %q, want UNAUTHENTICATED", st.State)
	}
	if st.Authenticated {
		t.Fatal("authenticated = true without a session")
	}
}

func TestConnectedCommandsFailWithoutControllerConfig(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), nil, "clients", "list")
	if err == nil {
		t.Fatal("expected an error without controller configuration")
	}
	if !strings.Contains(err.Error(), "controller.url") {
		t.Fatalf("error = %q, want it to point at controller.url", err)
	}
}
