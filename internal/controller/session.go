package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
	"nc-warden.io/warden/internal/storage"
)

// State is the session lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config carries the connection settings for one controller.
type Config struct {
	URL      string
	Site     string
	Username string
	Password string

	Timeout            time.Duration
	InsecureSkipVerify bool
}

// SessionStore persists the session blob.
type SessionStore interface {
	Get(name string, v interface{}) error
	Set(name string, v interface{}) error
	Delete(name string) error
}

// Manager owns the authentication lifecycle: login, family detection,
// persisted session reuse, and expiry-triggered re-authentication. The
// Controller Client borrows sessions per call and never mutates them.
//
// All state transitions happen under one mutex, so concurrent callers
// observing an expired session serialize on a single re-login.
type Manager struct {
	cfg   Config
	store SessionStore
	http  *http.Client

	mu       sync.Mutex
	state    State
	sess     *Session
	families map[string]Family
}

// NewManager creates a session Manager for the configured controller.
func NewManager(cfg Config, store SessionStore) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		// Self-signed controller certificates are the norm on local
		// hardware; verification stays on unless explicitly disabled.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Manager{
		cfg:   cfg,
		store: store,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		state:    StateUnauthenticated,
		families: make(map[string]Family),
	}
}

// HTTPClient returns the shared transport used for authenticated calls.
func (m *Manager) HTTPClient() *http.Client {
	return m.http
}

// URL returns the configured controller base URL.
func (m *Manager) URL() string {
	return m.cfg.URL
}

// Site returns the configured site identifier.
func (m *Manager) Site() string {
	return m.cfg.Site
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Peek returns the in-memory or persisted session without logging in.
// Nil when no usable session material exists for the configured
// controller. Status reporting only; everything else goes through
// Current.
func (m *Manager) Peek() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return m.sess
	}
	return m.loadPersisted()
}

// Current returns a complete session, reusing valid persisted auth
// material and logging in otherwise. In the FAILED state it returns
// AuthenticationError without touching the network; Reset or fresh
// credentials are required first.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateFailed {
		return nil, apperrors.ErrAuthFailedf("session is in FAILED state; run login again")
	}
	if m.sess.Complete() && !m.sess.Expired(time.Now()) {
		return m.sess, nil
	}
	if sess := m.loadPersisted(); sess != nil {
		m.adoptLocked(sess, false)
		return m.sess, nil
	}
	return m.loginLocked(ctx, StateUnauthenticated)
}

// Refresh re-authenticates after stale was rejected by the controller.
// The first caller to detect expiry performs the re-login; callers
// racing on the same stale session wait here and reuse the result. A
// login failure on this path is terminal (FAILED).
func (m *Manager) Refresh(ctx context.Context, stale *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateFailed {
		return nil, apperrors.ErrAuthFailedf("session is in FAILED state; run login again")
	}
	// Another caller may have refreshed while we waited for the lock.
	if m.sess != nil && m.sess != stale && m.sess.Complete() && !m.sess.Expired(time.Now()) {
		return m.sess, nil
	}

	m.sess = nil
	if err := m.store.Delete(storage.SessionBlob); err != nil {
		logger.Warn("Failed to delete stale session", zap.Error(err))
	}
	return m.loginLocked(ctx, StateFailed)
}

// MarkValidated records a successful authenticated call on the session.
func (m *Manager) MarkValidated(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess != nil {
		sess.LastValidated = time.Now()
	}
}

// MarkFailed moves the session to the terminal FAILED state and destroys
// the persisted session. Called when a call is rejected even after one
// re-login; there is never a third attempt.
func (m *Manager) MarkFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateFailed
	m.sess = nil
	if err := m.store.Delete(storage.SessionBlob); err != nil {
		logger.Warn("Failed to delete session", zap.Error(err))
	}
}

// Reset leaves the FAILED state, allowing a fresh login attempt.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.sess = nil
}

// Login forces a fresh authentication, ignoring any persisted session.
func (m *Manager) Login(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.sess = nil
	return m.loginLocked(ctx, StateUnauthenticated)
}

// Logout destroys the session locally and tells the controller to drop
// it. The server-side call is best-effort; local destruction always
// happens.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sess
	if sess == nil {
		sess = m.loadPersisted()
	}
	if sess.Complete() {
		path := "/api/logout"
		if sess.Family == FamilyUDM {
			path = "/api/auth/logout"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL+path, nil)
		if err == nil {
			attachAuth(req, sess)
			if resp, err := m.http.Do(req); err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}
	}

	m.sess = nil
	m.state = StateUnauthenticated
	if err := m.store.Delete(storage.SessionBlob); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// loadPersisted returns the stored session when it matches the
// configured controller and is still complete and unexpired.
func (m *Manager) loadPersisted() *Session {
	var sess Session
	if err := m.store.Get(storage.SessionBlob, &sess); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Debug("Discarding unreadable session blob", zap.Error(err))
		}
		return nil
	}
	if sess.ControllerURL != m.cfg.URL {
		return nil
	}
	if !sess.Complete() || sess.Expired(time.Now()) {
		return nil
	}
	return &sess
}

func (m *Manager) adoptLocked(sess *Session, persist bool) {
	m.sess = sess
	m.state = StateAuthenticated
	m.families[sess.ControllerURL] = sess.Family
	if persist {
		if err := m.store.Set(storage.SessionBlob, sess); err != nil {
			// Auth still works for this invocation; only reuse is lost.
			logger.Warn("Failed to persist session", zap.Error(err))
		}
	}
}

// errLoginFallthrough signals that the UDM endpoint answered with an
// unexpected shape and the legacy endpoint should be tried.
var errLoginFallthrough = errors.New("login endpoint mismatch")

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// loginLocked performs family detection (cached per URL) and login.
// rejectState is entered when the controller rejects the credentials:
// UNAUTHENTICATED for first logins, FAILED for the re-login path.
func (m *Manager) loginLocked(ctx context.Context, rejectState State) (*Session, error) {
	m.state = StateAuthenticating

	family, cached := m.families[m.cfg.URL]
	if !cached {
		family = detectFamily(ctx, m.http, m.cfg.URL)
		m.families[m.cfg.URL] = family
	}

	creds := loginRequest{
		Username: m.cfg.Username,
		Password: m.cfg.Password,
		Remember: true,
	}

	if family == FamilyUDM {
		sess, err := m.loginUDM(ctx, creds)
		switch {
		case err == nil:
			m.adoptLocked(sess, true)
			logger.Debug("Authenticated",
				zap.String("controller_url", m.cfg.URL),
				zap.String("family", string(FamilyUDM)),
			)
			return sess, nil
		case errors.Is(err, errLoginFallthrough):
			// Not actually UDM-shaped; try the legacy endpoint once.
			m.families[m.cfg.URL] = FamilyLegacy
		default:
			return nil, m.loginFailed(err, rejectState)
		}
	}

	sess, err := m.loginLegacy(ctx, creds)
	if err != nil {
		return nil, m.loginFailed(err, rejectState)
	}
	m.adoptLocked(sess, true)
	logger.Debug("Authenticated",
		zap.String("controller_url", m.cfg.URL),
		zap.String("family", string(FamilyLegacy)),
	)
	return sess, nil
}

// loginFailed applies the state transition for a failed login and
// returns the error to surface.
func (m *Manager) loginFailed(err error, rejectState State) error {
	if apperrors.HasCode(err, apperrors.CodeAuthFailed) {
		m.state = rejectState
		if rejectState == StateFailed {
			m.sess = nil
			if derr := m.store.Delete(storage.SessionBlob); derr != nil {
				logger.Warn("Failed to delete session", zap.Error(derr))
			}
		}
		return err
	}
	// Transport-level failure: no authenticated exchange happened.
	m.state = StateUnauthenticated
	return err
}

func (m *Manager) loginUDM(ctx context.Context, creds loginRequest) (*Session, error) {
	resp, err := m.postJSON(ctx, m.cfg.URL+"/api/auth/login", creds)
	if err != nil {
		return nil, apperrors.ErrControllerUnreachablef(m.cfg.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK:
		return m.newSession(FamilyUDM, resp), nil
	case http.StatusForbidden:
		// 403 on UDM usually means a valid account without API access.
		return nil, apperrors.ErrAuthFailedf("invalid username or password (or account lacks API access)")
	case http.StatusUnauthorized:
		return nil, apperrors.ErrAuthFailedf("invalid username or password")
	default:
		return nil, errLoginFallthrough
	}
}

func (m *Manager) loginLegacy(ctx context.Context, creds loginRequest) (*Session, error) {
	resp, err := m.postJSON(ctx, m.cfg.URL+"/api/login", creds)
	if err != nil {
		return nil, apperrors.ErrControllerUnreachablef(m.cfg.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK:
		return m.newSession(FamilyLegacy, resp), nil
	case http.StatusBadRequest:
		var envelope apiResponse
		if err := json.Unmarshal(body, &envelope); err == nil &&
			strings.Contains(envelope.Meta.Msg, "Invalid") {
			return nil, apperrors.ErrAuthFailedf("invalid username or password")
		}
		return nil, apperrors.ErrAuthFailedf("check credentials")
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.ErrAuthFailedf("invalid username or password")
	default:
		return nil, apperrors.ErrAuthFailedf(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
}

func (m *Manager) postJSON(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return m.http.Do(req)
}

func (m *Manager) newSession(family Family, resp *http.Response) *Session {
	cookies := make(map[string]string, len(resp.Cookies()))
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	return &Session{
		ControllerURL: m.cfg.URL,
		Family:        family,
		Site:          m.cfg.Site,
		Auth: AuthMaterial{
			Cookies:   cookies,
			CSRFToken: resp.Header.Get("X-CSRF-Token"),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// attachAuth sets the session's auth material on an outbound request.
func attachAuth(req *http.Request, sess *Session) {
	for name, value := range sess.Auth.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if sess.Auth.CSRFToken != "" {
		req.Header.Set("X-CSRF-Token", sess.Auth.CSRFToken)
	}
}
