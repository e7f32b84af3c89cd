package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/deploy"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/llm"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/catalog"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/config"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/service"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/storage"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/policy"
)

type testAssets struct{}

func (testAssets) Generate(ctx context.Context, brief string, count int) ([]string, error) {
	urls := make([]string, count)
	for i := range urls {
		urls[i] = "https://img.local/logo.png"
	}
	return urls, nil
}

type testDeployer struct{}

func (testDeployer) Deploy(ctx context.Context, req deploy.Request) (*deploy.Result, error) {
	return &deploy.Result{ChatID: "chat_t", PreviewURL: "https://preview.local/t"}, nil
}

func (testDeployer) Reachable(ctx context.Context, url string) bool { return true }

type testEnv struct {
	echo  *echo.Echo
	svc   *service.Service
	store *store.SQLiteStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cat, err := catalog.Load()
	require.NoError(t, err)

	pol, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	cfg := &config.Config{
		LogoVariants:         2,
		MaxConcurrentRuns:    2,
		LevelParallelism:     1,
		PackageLinkTTL:       time.Hour,
		ProgressPollInterval: 10 * time.Millisecond,
	}

	svc := service.New(service.Deps{
		Store:     s,
		Catalog:   cat,
		Generator: llm.NewMockClient(),
		Assets:    testAssets{},
		Deployer:  testDeployer{},
		Objects:   storage.NewMemoryStore(),
		Policy:    pol,
		Config:    cfg,
	})

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e)
	return &testEnv{echo: e, svc: svc, store: s}
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) startRun(t *testing.T, tier string) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/v1/runs", `{"owner_id":"owner_1","tier":"`+tier+`","subject":"a mobile dog grooming service"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var run domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.True(t, strings.HasPrefix(run.RunID, "run_"))
	return run.RunID
}

func (env *testEnv) waitTerminal(t *testing.T, runID string) *domain.Run {
	t.Helper()
	var run *domain.Run
	require.Eventually(t, func() bool {
		r, err := env.svc.GetRun(context.Background(), runID)
		if err != nil || r == nil {
			return false
		}
		run = r
		return r.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond)
	return run
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCreateRunValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/runs", `{"subject":"something"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tier is required")

	rec = env.do(http.MethodPost, "/v1/runs", `{"tier":"starter"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "subject is required")

	rec = env.do(http.MethodPost, "/v1/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	runID := env.startRun(t, "starter")

	run := env.waitTerminal(t, runID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 6, run.TotalCount)
	assert.Equal(t, 6, run.CompletedCount)

	rec := env.do(http.MethodGet, "/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)

	rec = env.do(http.MethodGet, "/v1/runs/"+runID+"/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items struct {
		RunID string                 `json:"run_id"`
		Items []domain.ItemExecution `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items.Items, 6)
	for _, item := range items.Items {
		assert.Equal(t, domain.ItemStatusCompleted, item.Status)
		assert.NotEmpty(t, item.Output)
	}
}

func TestGetRunNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/runs/run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/v1/runs/run_missing/items", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/runs/run_missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTerminalRunIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	runID := env.startRun(t, "starter")
	env.waitTerminal(t, runID)

	rec := env.do(http.MethodPost, "/v1/runs/"+runID+"/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in terminal state")
}

func TestPackageRunOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	runID := env.startRun(t, "starter")
	env.waitTerminal(t, runID)

	rec := env.do(http.MethodPost, "/v1/runs/"+runID+"/package", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pkg domain.DeliveryPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkg))
	assert.Equal(t, domain.PackageFormatDocument, pkg.Format)
	assert.NotEmpty(t, pkg.SignedURL)

	// Second request returns the existing unexpired package.
	rec = env.do(http.MethodPost, "/v1/runs/"+runID+"/package", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var again domain.DeliveryPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, pkg.PackageID, again.PackageID)
	assert.Equal(t, pkg.SignedURL, again.SignedURL)

	rec = env.do(http.MethodPost, "/v1/packages/"+pkg.PackageID+"/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed domain.DeliveryPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, pkg.SignedURL, refreshed.SignedURL)
	assert.Equal(t, pkg.StoragePath, refreshed.StoragePath)

	rec = env.do(http.MethodPost, "/v1/packages/pkg_missing/refresh", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPackageRunStillRunning(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.CreateRun(context.Background(), &domain.Run{
		RunID:     "run_busy0001",
		OwnerID:   "owner_1",
		Tier:      domain.TierStarter,
		Subject:   "subject",
		Status:    domain.RunStatusInProgress,
		StartedAt: time.Now().UTC(),
	}))

	rec := env.do(http.MethodPost, "/v1/runs/run_busy0001/package", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/v1/runs/run_missing/package", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamProgress(t *testing.T) {
	env := newTestEnv(t)
	runID := env.startRun(t, "starter")
	env.waitTerminal(t, runID)

	rec := env.do(http.MethodGet, "/v1/runs/"+runID+"/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get(echo.HeaderContentType))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// Two events per item over six items.
	require.Len(t, lines, 12)

	var last domain.ProgressEvent
	prevTs := int64(0)
	for _, line := range lines {
		var event domain.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		assert.Equal(t, runID, event.RunID)
		assert.Greater(t, event.Ts, prevTs)
		prevTs = event.Ts
		last = event
	}
	assert.Equal(t, domain.ProgressCompleted, last.Status)
	assert.Equal(t, 100, last.Percentage)
	assert.Equal(t, 6, last.CompletedCount)
}

func TestStreamProgressNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/runs/run_missing/progress", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
