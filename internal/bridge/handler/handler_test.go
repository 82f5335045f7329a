package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robloxguru/gamebridge/internal/bridge/auth"
	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/internal/bridge/handler"
	"github.com/robloxguru/gamebridge/internal/bridge/ratelimit"
	"github.com/robloxguru/gamebridge/internal/bridge/router"
	"github.com/robloxguru/gamebridge/shared/logger"
)

const (
	testSecret = "super-secret"
	testSalt   = "salt"
)

// memStore is an in-memory Store implementing the registry/queue/snapshot
// semantics for handler tests.
type memStore struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session // by jobID
	commands  []domain.QueuedCommand
	snapshots map[string]*domain.PlayerSnapshot
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[string]*domain.Session),
		snapshots: make(map[string]*domain.PlayerSnapshot),
		nextID:    1,
	}
}

func (m *memStore) SessionByAPIKey(ctx context.Context, apiKey string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.APIKey == apiKey {
			return s, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *memStore) SessionByJobID(ctx context.Context, jobID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[jobID]; ok {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *memStore) Heartbeat(ctx context.Context, jobID, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if (id == jobID || s.APIKey == apiKey) && !(id == jobID && s.APIKey == apiKey) {
			delete(m.sessions, id)
		}
	}
	m.sessions[jobID] = &domain.Session{
		JobID:    jobID,
		APIKey:   apiKey,
		LastPing: sql.NullTime{Time: time.Now(), Valid: true},
	}
	return nil
}

func (m *memStore) EnqueueCommand(ctx context.Context, apiKey, payload string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.APIKey == apiKey {
			m.commands = append(m.commands, domain.QueuedCommand{
				ID:         m.nextID,
				APIKey:     apiKey,
				EnqueuedAt: time.Now(),
				Payload:    payload,
			})
			m.nextID++
			return s.JobID, nil
		}
	}
	return "", domain.ErrSessionNotFound
}

func (m *memStore) DrainCommands(ctx context.Context, apiKey string) ([]domain.QueuedCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var drained, kept []domain.QueuedCommand
	for _, cmd := range m.commands {
		if cmd.APIKey == apiKey {
			drained = append(drained, cmd)
		} else {
			kept = append(kept, cmd)
		}
	}
	m.commands = kept
	return drained, nil
}

func (m *memStore) Snapshot(ctx context.Context, jobID string) (*domain.PlayerSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[jobID]; ok {
		return s, nil
	}
	return nil, domain.ErrSnapshotNotFound
}

func (m *memStore) UpsertSnapshot(ctx context.Context, jobID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[jobID] = &domain.PlayerSnapshot{
		JobID:       jobID,
		Data:        data,
		LastUpdated: time.Now(),
	}
	return nil
}

func (m *memStore) AllSnapshots(ctx context.Context) ([]domain.PlayerSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.PlayerSnapshot
	for _, s := range m.snapshots {
		all = append(all, *s)
	}
	return all, nil
}

type recordedEvents struct {
	mu       sync.Mutex
	enqueued []string
}

func (r *recordedEvents) CommandEnqueued(ctx context.Context, jobID, apiKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, jobID)
}

type testEnv struct {
	router *gin.Engine
	store  *memStore
	events *recordedEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	events := &recordedEvents{}

	gate, err := auth.NewGate(auth.DigestSecret(testSecret, testSalt), testSalt, store)
	require.NoError(t, err)

	deps := &handler.Dependencies{
		Logger:  logger.NewDefault().Logger,
		Store:   store,
		Gate:    gate,
		Events:  events,
		Limiter: ratelimit.New(10*time.Second, 100),
	}

	return &testEnv{
		router: router.SetupRouter(deps),
		store:  store,
		events: events,
	}
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, jobID, apiKey string) {
	t.Helper()
	w := e.do(http.MethodPost, "/internal/server/keepAlive", nil, map[string]string{
		"Authorization": testSecret,
		"ApiKey":        apiKey,
		"JobId":         jobID,
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/test", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API online", decodeBody(t, w)["status"])
}

func TestKeepAlive(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name: "valid registration",
			headers: map[string]string{
				"Authorization": testSecret,
				"ApiKey":        "K1",
				"JobId":         "job-a",
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "missing headers",
			headers: map[string]string{
				"Authorization": testSecret,
				"JobId":         "job-a",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required headers",
		},
		{
			name: "wrong secret",
			headers: map[string]string{
				"Authorization": "not-the-secret",
				"ApiKey":        "K1",
				"JobId":         "job-a",
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid authorization header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(http.MethodPost, "/internal/server/keepAlive", nil, tt.headers)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
			} else {
				assert.Equal(t, "KeepAlive updated", decodeBody(t, w)["status"])
			}
		})
	}
}

func TestKeepAlive_RevokesConflictingBinding(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "job-a", "K1")
	env.register(t, "job-a", "K2")

	session, err := env.store.SessionByJobID(context.Background(), "job-a")
	require.NoError(t, err)
	assert.Equal(t, "K2", session.APIKey)

	_, err = env.store.SessionByAPIKey(context.Background(), "K1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExecuteCommand(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	t.Run("enqueue with valid key", func(t *testing.T) {
		w := env.do(http.MethodPost, "/command/execute",
			map[string]string{"data": "kick 123"},
			map[string]string{"Authorization": "K1"},
		)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Command enqueued", decodeBody(t, w)["status"])
		assert.Equal(t, []string{"job-a"}, env.events.enqueued)
	})

	t.Run("unknown key is unauthorized, not dropped", func(t *testing.T) {
		w := env.do(http.MethodPost, "/command/execute",
			map[string]string{"data": "kick 123"},
			map[string]string{"Authorization": "K9"},
		)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid apiKey", decodeBody(t, w)["error"])
	})

	t.Run("missing body", func(t *testing.T) {
		w := env.do(http.MethodPost, "/command/execute", nil,
			map[string]string{"Authorization": "K1"},
		)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing apiKey or data", decodeBody(t, w)["error"])
	})
}

func TestPollCommands_DrainIsConsumeOnce(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	for _, payload := range []string{"payload1", "payload2"} {
		w := env.do(http.MethodPost, "/command/execute",
			map[string]string{"data": payload},
			map[string]string{"Authorization": "K1"},
		)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(http.MethodPost, "/internal/server/get/data/commands", nil,
		map[string]string{"Authentication": "K1"},
	)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "job-a", body["jobId"])

	commands := body["commands"].([]any)
	require.Len(t, commands, 2)
	first := commands[0].(map[string]any)
	second := commands[1].(map[string]any)
	assert.Equal(t, "payload1", first["data"])
	assert.Equal(t, "payload2", second["data"])
	assert.Less(t, first["id"].(float64), second["id"].(float64), "insertion order")

	// immediate second drain is empty
	w = env.do(http.MethodPost, "/internal/server/get/data/commands", nil,
		map[string]string{"Authentication": "K1"},
	)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["commands"])
}

func TestPollCommands_Auth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/internal/server/get/data/commands", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/internal/server/get/data/commands", nil,
		map[string]string{"Authentication": "K9"},
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key", decodeBody(t, w)["error"])
}

func playersFixture(jobID string) domain.PlayerSet {
	return domain.PlayerSet{
		"261": {UserID: 261, Name: "builderman", DisplayName: "Builderman", JobID: jobID, Verified: true},
		"312": {UserID: 312, Name: "noob42", DisplayName: "Noob", JobID: jobID, Verified: false},
	}
}

func TestSubmitAndGetPlayers_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	w := env.do(http.MethodPost, "/internal/server/submitPlayers",
		map[string]any{"players": playersFixture("job-a")},
		map[string]string{
			"Authorization": testSecret,
			"ApiKey":        "K1",
			"JobId":         "job-a",
		},
	)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Players data updated", decodeBody(t, w)["status"])

	w = env.do(http.MethodPost, "/server/players", nil,
		map[string]string{"Authorization": "K1"},
	)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "job-a", body["jobId"])

	players := body["players"].(map[string]any)
	require.Len(t, players, 2)
	builderman := players["261"].(map[string]any)
	assert.Equal(t, "builderman", builderman["Name"])
	assert.Equal(t, true, builderman["Verified"])
}

func TestSubmitPlayers_LastUpdatedIncreases(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	submit := func() {
		w := env.do(http.MethodPost, "/internal/server/submitPlayers",
			map[string]any{"players": playersFixture("job-a")},
			map[string]string{
				"Authorization": testSecret,
				"ApiKey":        "K1",
				"JobId":         "job-a",
			},
		)
		require.Equal(t, http.StatusOK, w.Code)
	}

	submit()
	first := env.store.snapshots["job-a"].LastUpdated
	time.Sleep(5 * time.Millisecond)
	submit()
	second := env.store.snapshots["job-a"].LastUpdated

	assert.True(t, second.After(first), "lastUpdated strictly increases across upserts")
}

func TestSubmitPlayers_UnknownPairDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	w := env.do(http.MethodPost, "/internal/server/submitPlayers",
		map[string]any{"players": playersFixture("job-b")},
		map[string]string{
			"Authorization": testSecret,
			"ApiKey":        "K1",
			"JobId":         "job-b", // not K1's job
		},
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid apiKey/jobId combination", decodeBody(t, w)["error"])
	assert.Empty(t, env.store.snapshots)
}

func TestGetPlayers_NoSnapshotYieldsEmptySet(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	w := env.do(http.MethodPost, "/server/players", nil,
		map[string]string{"Authorization": "K1"},
	)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "job-a", body["jobId"])
	assert.Empty(t, body["players"])
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "job-a", "K1")

	w := env.do(http.MethodPost, "/internal/server/submitPlayers",
		map[string]any{"players": playersFixture("job-a")},
		map[string]string{
			"Authorization": testSecret,
			"ApiKey":        "K1",
			"JobId":         "job-a",
		},
	)
	require.Equal(t, http.StatusOK, w.Code)

	adminHeaders := map[string]string{"Authorization": testSecret}

	t.Run("session key lookup", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/sessions/job-a/key", nil, adminHeaders)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "job-a", body["jobId"])
		assert.Equal(t, "K1", body["apiKey"])
	})

	t.Run("session key lookup for unknown job", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/sessions/job-x/key", nil, adminHeaders)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("search by user id", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/players/search?target=261", nil, adminHeaders)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "builderman", body["Name"])
	})

	t.Run("search by name", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/players/search?target=noob42", nil, adminHeaders)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, float64(312), body["UserId"])
	})

	t.Run("search miss", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/players/search?target=nobody", nil, adminHeaders)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list players by job", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/players/job-a", nil, adminHeaders)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Len(t, body["players"], 2)
	})

	t.Run("bad secret is rejected", func(t *testing.T) {
		w := env.do(http.MethodGet, "/admin/sessions/job-a/key", nil,
			map[string]string{"Authorization": "wrong"},
		)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	gate, err := auth.NewGate(auth.DigestSecret(testSecret, testSalt), testSalt, store)
	require.NoError(t, err)

	deps := &handler.Dependencies{
		Logger:  logger.NewDefault().Logger,
		Store:   store,
		Gate:    gate,
		Events:  &recordedEvents{},
		Limiter: ratelimit.New(10*time.Second, 5),
	}
	env := &testEnv{router: router.SetupRouter(deps), store: store}

	for i := 1; i <= 5; i++ {
		w := env.do(http.MethodGet, "/test", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("request %d", i))
	}

	w := env.do(http.MethodGet, "/test", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", decodeBody(t, w)["error"])

	// the poll endpoint is exempt from the limiter
	w = env.do(http.MethodPost, "/internal/server/get/data/commands", nil,
		map[string]string{"Authentication": "K9"},
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
