package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/client"
	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/stream"
	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDetector struct {
	mu   sync.Mutex
	addr string
	err  error
}

func (d *fixedDetector) Detect(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr, d.err
}

type okPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *okPublisher) Publish(ctx context.Context, domain, token, address string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return true, nil
}

type testEnv struct {
	router    *gin.Engine
	agent     *ddns.Agent
	store     *settings.FileStore
	publisher *okPublisher
	token     string
}

func newTestEnv(t *testing.T, cfg ddns.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prevApp, prevUsers := types.NightGardAppConfig, types.NightGardUsersConfig
	types.NightGardAppConfig = &types.AppConfig{JWTSecret: "test-secret", JWTExpiryDuration: 1}
	types.NightGardUsersConfig = &types.UsersConfig{Users: []types.UserConfig{
		{Username: "admin", Password: client.HashPassword("admin-pass"), Role: "admin"},
		{Username: "viewer", Password: client.HashPassword("viewer-pass"), Role: "user"},
	}}

	db, err := database.Open(types.DatabaseConfig{Type: "sqlite-pure", Database: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	prevDB := database.DB
	database.DB = db
	database.InitLogService()

	t.Cleanup(func() {
		types.NightGardAppConfig, types.NightGardUsersConfig = prevApp, prevUsers
		database.DB = prevDB
		database.InitLogService()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	pub := &okPublisher{}
	agent := ddns.New(cfg,
		ddns.WithDetector(&fixedDetector{addr: "203.0.113.7"}),
		ddns.WithPublisher(pub),
	)
	t.Cleanup(agent.Stop)
	unsubscribe := agent.Subscribe(func(ev ddns.Event) {
		if ev.Type == ddns.EventCycleCompleted && ev.Cycle != nil {
			database.LogUpdateCycle(*ev.Cycle)
		}
	})
	t.Cleanup(unsubscribe)

	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	r := InitRouter(Options{
		Agent:    agent,
		Settings: store,
		Logs:     database.GetLogService(),
		Stream:   stream.NewStreamManager(),
		Version:  "test",
	})

	env := &testEnv{router: r, agent: agent, store: store, publisher: pub}
	env.token = env.login(t, "admin", "admin-pass")
	return env
}

func (e *testEnv) login(t *testing.T, user, pass string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/client", strings.NewReader(`{"name":"test"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.ClientResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(client.HeaderKey, token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, ddns.Config{})
	w := env.do(t, http.MethodGet, "/ping", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t, ddns.Config{})
	req := httptest.NewRequest(http.MethodPost, "/client", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:nope")))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDDNS_RequiresToken(t *testing.T) {
	env := newTestEnv(t, ddns.Config{})
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/ddns/status", "", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/ddns/status", "", "", "garbage").Code)
}

func TestDDNS_LoggedOutTokenRejected(t *testing.T) {
	env := newTestEnv(t, ddns.Config{})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/client/current", "", "", env.token).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/ddns/status", "", "", env.token).Code)
}

func TestDDNS_StatusMasksToken(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "abcdef123456"})
	w := env.do(t, http.MethodGet, "/ddns/status", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	state := body["state"].(map[string]interface{})
	assert.Equal(t, string(ddns.StatusIdle), state["status"])
	cfg := body["config"].(map[string]interface{})
	assert.Equal(t, "home", cfg["domain"])
	assert.Equal(t, "********3456", cfg["token"])
	assert.NotContains(t, w.Body.String(), "abcdef123456")
}

func TestDDNS_StartRefusedWithoutConfig(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home"})
	w := env.do(t, http.MethodPost, "/ddns/start", "", "", env.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.agent.Running())
}

func TestDDNS_StartStop(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "tok", Interval: time.Hour})

	w := env.do(t, http.MethodPost, "/ddns/start", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.agent.Running())

	w = env.do(t, http.MethodPost, "/ddns/stop", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.agent.Running())
	assert.Equal(t, ddns.StatusStopped, env.agent.Snapshot().Status)

	acts, total, err := database.GetLogService().GetUserActivities(database.ActivityFilter{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(3))
	assert.Equal(t, database.UserActionStopAgent, acts[0].Action)
}

func TestDDNS_ControlNeedsAdmin(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "tok"})
	viewer := env.login(t, "viewer", "viewer-pass")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/ddns/status", "", "", viewer).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/ddns/update", "", "", viewer).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, "/ddns/config", "application/json", `{}`, viewer).Code)
}

func TestDDNS_ForceUpdateRecordsHistory(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "tok"})

	w := env.do(t, http.MethodPost, "/ddns/update", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(ddns.StatusSuccess), decode(t, w)["result"])

	w = env.do(t, http.MethodPost, "/ddns/update", "", "", env.token)
	assert.Equal(t, string(ddns.StatusNoChange), decode(t, w)["result"])
	assert.Equal(t, 1, env.publisher.calls)

	w = env.do(t, http.MethodGet, "/logs/updates", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	logs := body["logs"].([]interface{})
	newest := logs[0].(map[string]interface{})
	assert.Equal(t, string(ddns.StatusNoChange), newest["status"])
	assert.Equal(t, database.TriggerManual, newest["trigger"])

	w = env.do(t, http.MethodGet, "/logs/updates/stats", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 100, stats["success_rate"])
	assert.Equal(t, "203.0.113.7", stats["last_address"])
}

func TestDDNS_UpdateConfigJSON(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "secret-token"})

	w := env.do(t, http.MethodPut, "/ddns/config", "application/json",
		`{"domain":"cabin.duckdns.org","token":"*******oken","interval_seconds":600}`, env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cfg := env.agent.Config()
	assert.Equal(t, "cabin", cfg.Domain)
	assert.Equal(t, "secret-token", cfg.Token, "masked token keeps the stored one")
	assert.Equal(t, 10*time.Minute, cfg.Interval)

	saved, err := settings.LoadConfig(env.store, ddns.Config{})
	require.NoError(t, err)
	assert.Equal(t, cfg, saved)
}

func TestDDNS_UpdateConfigRejectsInterval(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "tok"})
	for _, body := range []string{`{"interval_seconds":59}`, `{"interval_seconds":3601}`, `{"domain":`} {
		w := env.do(t, http.MethodPut, "/ddns/config", "application/json", body, env.token)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, ddns.DefaultInterval, env.agent.Config().Interval)

	_, err := env.store.Load()
	assert.True(t, errors.Is(err, settings.ErrNotFound))
}

func TestDDNS_ConfigYAML(t *testing.T) {
	env := newTestEnv(t, ddns.Config{Domain: "home", Token: "tok"})

	w := env.do(t, http.MethodPut, "/ddns/config", "application/yaml",
		"domain: lake\ntoken: new-token-value\ninterval_seconds: 120\n", env.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new-token-value", env.agent.Config().Token)

	w = env.do(t, http.MethodGet, "/ddns/config?format=yaml", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "yaml")
	assert.Contains(t, w.Body.String(), "domain: lake")
	assert.Contains(t, w.Body.String(), "interval_seconds: 120")
	assert.NotContains(t, w.Body.String(), "new-token-value")
}

func TestDDNS_LocalAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dr := NewDDNSRouter(ddns.New(ddns.Config{}), nil)
	dr.localAddress = func(context.Context) (string, bool) { return "192.168.1.20", true }

	r := gin.New()
	r.GET("/local", dr.GetLocalAddress)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/local", nil))

	body := decode(t, w)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "192.168.1.20", body["address"])
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t, ddns.Config{})
	w := env.do(t, http.MethodGet, "/system/status", "", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "test", body["version"])
	assert.NotNil(t, body["agent"])
}
