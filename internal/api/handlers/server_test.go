package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
	"nc-warden.io/warden/internal/pkg/logger"
	"nc-warden.io/warden/internal/pkg/worker"
	"nc-warden.io/warden/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

// fakeSession is a SessionControl stand-in with scripted behavior.
type fakeSession struct {
	state    controller.State
	sess     *controller.Session
	loginErr error
	logins   int
	logouts  int
}

func (f *fakeSession) State() controller.State   { return f.state }
func (f *fakeSession) Peek() *controller.Session { return f.sess }
func (f *fakeSession) URL() string               { return "https://192.168.1.1:8443" }
func (f *fakeSession) Site() string              { return "default" }

func (f *fakeSession) Login(context.Context) (*controller.Session, error) {
	f.logins++
	if f.loginErr != nil {
		f.state = controller.StateFailed
		return nil, f.loginErr
	}
	if f.sess == nil {
		f.sess = &controller.Session{
			ControllerURL: f.URL(),
			Family:        controller.FamilyUDM,
			Site:          f.Site(),
			CreatedAt:     time.Now(),
		}
	}
	f.state = controller.StateAuthenticated
	return f.sess, nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.logouts++
	f.sess = nil
	f.state = controller.StateUnauthenticated
	return nil
}

type testServer struct {
	router  *gin.Engine
	mock    *controller.Mock
	groups  *group.Store
	session *fakeSession
}

// newTestServer wires a full Server over a mock controller and a real
// group store in a temp dir, mounted under /api/v1 like serve mode.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mock := controller.NewMock()
	groups := group.NewStore(storage.New(t.TempDir()))
	pool, err := worker.New("handlers-test", 4)
	if err != nil {
		t.Fatalf("create worker pool: %v", err)
	}
	t.Cleanup(func() { pool.Shutdown(time.Second) })

	session := &fakeSession{state: controller.StateUnauthenticated}
	srv := NewServer(ServerDeps{
		Session:  session,
		Ctrl:     mock,
		Groups:   groups,
		Resolver: group.NewResolver(groups),
		Executor: bulk.NewExecutor(mock, pool),
	})

	router := gin.New()
	srv.RegisterRoutes(router.Group("/api/v1"))

	return &testServer{router: router, mock: mock, groups: groups, session: session}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v body=%s", err, w.Body.String())
	}
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d body=%s", w.Code, want, w.Body.String())
	}
}

func wantErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, w, status)
	var body struct {
		Code string `json:"code"`
	}
	decode(t, w, &body)
	if body.Code != code {
		t.Fatalf("error code = %q, want %q body=%s", body.Code, code, w.Body.String())
	}
}
