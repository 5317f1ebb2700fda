// Package testutil provides shared test fixtures, most importantly an
// httptest-backed fake controller speaking both URL-path conventions.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FakeClient is one seeded client record served by the fake controller.
type FakeClient struct {
	MAC      string
	Name     string
	Hostname string
	IP       string
	Network  string
	ESSID    string
	Wired    bool
	Guest    bool
	OUI      string
	Blocked  bool
	Online   bool
}

// FakeUniFi emulates a local controller for tests. UDM mode answers the
// family probe with 401 on /api/users/self, authenticates at
// /api/auth/login, and prefixes site APIs with /proxy/network. Legacy
// mode answers 404 on the probe, authenticates at /api/login, and
// serves site APIs under /api directly.
type FakeUniFi struct {
	Server *httptest.Server

	UDM      bool
	Username string
	Password string
	Site     string

	mu          sync.Mutex
	clients     map[string]*FakeClient
	devices     map[string]map[string]interface{}
	networks    []map[string]interface{}
	health      []map[string]interface{}
	tokens      map[string]bool
	loginCount  int
	rejectCalls int
	signingKey  []byte
}

// NewFakeUniFi starts a fake controller. Callers must Close it.
func NewFakeUniFi(udm bool) *FakeUniFi {
	f := &FakeUniFi{
		UDM:        udm,
		Username:   "admin",
		Password:   "secret",
		Site:       "default",
		clients:    make(map[string]*FakeClient),
		devices:    make(map[string]map[string]interface{}),
		tokens:     make(map[string]bool),
		signingKey: []byte("fake-controller-signing-key"),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.route))
	return f
}

// Close shuts the fake down.
func (f *FakeUniFi) Close() {
	f.Server.Close()
}

// URL returns the controller base URL.
func (f *FakeUniFi) URL() string {
	return f.Server.URL
}

// AddClient seeds one client.
func (f *FakeUniFi) AddClient(c FakeClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.MAC = strings.ToLower(c.MAC)
	f.clients[c.MAC] = &c
}

// ClientBlocked reports the blocked flag of a seeded client.
func (f *FakeUniFi) ClientBlocked(mac string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[strings.ToLower(mac)]
	return ok && c.Blocked
}

// AddDevice seeds one device record (raw controller JSON shape).
func (f *FakeUniFi) AddDevice(mac string, fields map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := map[string]interface{}{"mac": strings.ToLower(mac), "adopted": true}
	for k, v := range fields {
		record[k] = v
	}
	f.devices[strings.ToLower(mac)] = record
}

// SetNetworks seeds the network configuration listing.
func (f *FakeUniFi) SetNetworks(networks []map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks = networks
}

// SetHealth seeds the health report.
func (f *FakeUniFi) SetHealth(health []map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = health
}

// LoginCount returns how many successful logins the fake has served.
func (f *FakeUniFi) LoginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCount
}

// RevokeSessions invalidates every issued session, so the next site API
// call is rejected with 401 and forces a re-login.
func (f *FakeUniFi) RevokeSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]bool)
}

// RejectCalls makes the next n site API calls fail with 401 regardless
// of session validity. Lets tests exercise the retry-once limit.
func (f *FakeUniFi) RejectCalls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectCalls = n
}

func (f *FakeUniFi) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/api/users/self":
		if f.UDM {
			w.WriteHeader(http.StatusUnauthorized)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case path == "/status":
		if f.UDM {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	case path == "/api/auth/login" && f.UDM:
		f.handleLogin(w, r, true)
	case path == "/api/login" && !f.UDM:
		f.handleLogin(w, r, false)
	case path == "/api/auth/logout" || path == "/api/logout":
		w.WriteHeader(http.StatusOK)
	default:
		f.handleSiteAPI(w, r)
	}
}

func (f *FakeUniFi) handleLogin(w http.ResponseWriter, r *http.Request, udm bool) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if creds.Username != f.Username || creds.Password != f.Password {
		if udm {
			w.WriteHeader(http.StatusForbidden)
		} else {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.Invalid"},"data":[]}`)
		}
		return
	}

	f.mu.Lock()
	f.loginCount++
	var cookie *http.Cookie
	if udm {
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"userId": "fake-admin",
			"exp":    time.Now().Add(24 * time.Hour).Unix(),
		}).SignedString(f.signingKey)
		f.tokens[token] = true
		cookie = &http.Cookie{Name: "TOKEN", Value: token, Path: "/"}
	} else {
		token := fmt.Sprintf("unifises-%d", f.loginCount)
		f.tokens[token] = true
		cookie = &http.Cookie{Name: "unifises", Value: token, Path: "/"}
	}
	f.mu.Unlock()

	http.SetCookie(w, cookie)
	if udm {
		w.Header().Set("X-CSRF-Token", "fake-csrf-token")
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
}

func (f *FakeUniFi) authorized(r *http.Request) bool {
	name := "unifises"
	if f.UDM {
		name = "TOKEN"
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[cookie.Value]
}

func (f *FakeUniFi) handleSiteAPI(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/s/" + f.Site
	if f.UDM {
		prefix = "/proxy/network/api/s/" + f.Site
	}
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	forceReject := f.rejectCalls > 0
	if forceReject {
		f.rejectCalls--
	}
	f.mu.Unlock()

	if forceReject || !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	endpoint := strings.TrimPrefix(r.URL.Path, prefix)
	switch {
	case endpoint == "/stat/sta":
		f.writeClients(w, true)
	case endpoint == "/rest/user":
		f.writeClients(w, false)
	case strings.HasPrefix(endpoint, "/stat/user/"):
		f.writeClient(w, strings.TrimPrefix(endpoint, "/stat/user/"))
	case endpoint == "/cmd/stamgr":
		f.handleStamgr(w, r)
	case endpoint == "/stat/device":
		f.writeDevices(w)
	case endpoint == "/cmd/devmgr":
		f.handleDevmgr(w, r)
	case endpoint == "/rest/networkconf":
		f.mu.Lock()
		networks := f.networks
		f.mu.Unlock()
		writeEnvelope(w, networks)
	case endpoint == "/stat/event":
		writeEnvelope(w, []map[string]interface{}{})
	case endpoint == "/stat/health":
		f.mu.Lock()
		health := f.health
		f.mu.Unlock()
		writeEnvelope(w, health)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.InvalidObject"},"data":[]}`)
	}
}

func (f *FakeUniFi) clientJSON(c *FakeClient, activeView bool) map[string]interface{} {
	record := map[string]interface{}{
		"mac":      c.MAC,
		"name":     c.Name,
		"hostname": c.Hostname,
		"oui":      c.OUI,
		"is_wired": c.Wired,
		"is_guest": c.Guest,
		"blocked":  c.Blocked,
	}
	if activeView {
		// Live attributes only appear on the active listing.
		record["ip"] = c.IP
		if c.Wired {
			record["network"] = c.Network
		} else {
			record["essid"] = c.ESSID
		}
	}
	return record
}

func (f *FakeUniFi) writeClients(w http.ResponseWriter, activeOnly bool) {
	f.mu.Lock()
	var out []map[string]interface{}
	for _, c := range f.clients {
		if activeOnly && !c.Online {
			continue
		}
		out = append(out, f.clientJSON(c, activeOnly))
	}
	f.mu.Unlock()
	writeEnvelope(w, out)
}

func (f *FakeUniFi) writeClient(w http.ResponseWriter, mac string) {
	f.mu.Lock()
	c, ok := f.clients[strings.ToLower(mac)]
	f.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.UnknownUser"},"data":[]}`)
		return
	}
	writeEnvelope(w, []map[string]interface{}{f.clientJSON(c, true)})
}

func (f *FakeUniFi) handleStamgr(w http.ResponseWriter, r *http.Request) {
	var cmd struct {
		Cmd string `json:"cmd"`
		MAC string `json:"mac"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[strings.ToLower(cmd.MAC)]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.UnknownUser"},"data":[]}`)
		return
	}
	switch cmd.Cmd {
	case "block-sta":
		c.Blocked = true
	case "unblock-sta":
		c.Blocked = false
	case "kick-sta":
		c.Online = false
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
}

func (f *FakeUniFi) writeDevices(w http.ResponseWriter) {
	f.mu.Lock()
	var out []map[string]interface{}
	for _, d := range f.devices {
		out = append(out, d)
	}
	f.mu.Unlock()
	writeEnvelope(w, out)
}

func (f *FakeUniFi) handleDevmgr(w http.ResponseWriter, r *http.Request) {
	var cmd struct {
		Cmd string `json:"cmd"`
		MAC string `json:"mac"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	_, ok := f.devices[strings.ToLower(cmd.MAC)]
	f.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.UnknownDevice"},"data":[]}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	if data == nil {
		data = []interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meta": map[string]string{"rc": "ok"},
		"data": data,
	})
}
