// internal/cli/cli_test.go
package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capacity-engine/internal/common/config"
	"capacity-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"employees":[
			{"id":"e1","first_name":"Nate","last_name":"Ortiz","is_active":true},
			{"id":"e2","first_name":"Nick","last_name":"Hale","is_active":false}
		],"page":1,"total_pages":1}`))
	})
	mux.HandleFunc("/booking_windows", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"booking_windows":[]}`))
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":[],"page":1,"total_pages":1}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	body := `
app:
  name: capacityd
  environment: test
provider:
  base_url: ` + baseURL + `
  max_retries: 1
  initial_delay: 10
capacity:
  timezone: America/Los_Angeles
  technicians:
    - name: Nate
      match: ["nate"]
      priority: 1
    - name: Nick
      employee_id: e2
      priority: 2
logging:
  level: error
  output: stderr
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ==========================
// Command Tests
// ==========================

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "capacityd dev (commit=none, built=unknown)\n", out)
}

func TestCheckCmd_PrintsDecision(t *testing.T) {
	srv := createTestProvider(t)
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCmd(t, "--config", cfgPath, "check", "--date", "2099-01-06", "--zip", "94105")
	require.NoError(t, err)

	var resp models.CapacityResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "2099-01-06", resp.Date)
	assert.Equal(t, "94105", resp.Zip)
	assert.Equal(t, models.StateNextDay, resp.Overall.State)
	assert.False(t, resp.ExpressEligible)
	assert.False(t, resp.Degraded)
}

func TestCheckCmd_RejectsBadFlags(t *testing.T) {
	_, err := runCmd(t, "check", "--zip", "12")
	assert.ErrorContains(t, err, "invalid --zip")

	srv := createTestProvider(t)
	cfgPath := writeTestConfig(t, srv.URL)
	_, err = runCmd(t, "--config", cfgPath, "check", "--day", "yesterday")
	assert.ErrorContains(t, err, "invalid --day")
}

func TestCheckCmd_MissingConfigFile(t *testing.T) {
	_, err := runCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "check")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestTechniciansResolveCmd(t *testing.T) {
	srv := createTestProvider(t)
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCmd(t, "--config", cfgPath, "technicians", "resolve")
	require.NoError(t, err)

	var got struct {
		Technicians []models.Technician `json:"technicians"`
		Assignments []struct {
			Name       string `json:"name"`
			EmployeeID string `json:"employeeId"`
			Source     string `json:"source"`
			Active     bool   `json:"active"`
		} `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	require.Len(t, got.Technicians, 1)
	assert.Equal(t, "e1", got.Technicians[0].ID)

	require.Len(t, got.Assignments, 2)
	assert.Equal(t, "match", got.Assignments[0].Source)
	assert.True(t, got.Assignments[0].Active)
	assert.Equal(t, "config", got.Assignments[1].Source)
	assert.False(t, got.Assignments[1].Active, "inactive employee is skipped")
}

// ==========================
// Helper Tests
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(func() error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "flaky dependency")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = retryWithBackoff(func() error {
		attempts++
		return assert.AnError
	}, 2, time.Millisecond, zap.NewNop(), "dead dependency")

	assert.Equal(t, 2, attempts)
	assert.ErrorContains(t, err, "dead dependency failed after 2 attempts")
	assert.ErrorIs(t, err, assert.AnError)
}

// ==========================
// Server Lifecycle Tests
// ==========================

type blockingRunner struct {
	stopped atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	r.stopped.Store(true)
	return ctx.Err()
}

func TestRunServer_ListenFailureStopsBackgroundWork(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	runner := &blockingRunner{}
	var tracingFlushed atomic.Bool
	shutdownTracing := func(context.Context) error {
		tracingFlushed.Store(true)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runServer(ctx, &http.Server{Addr: ln.Addr().String()}, runner, time.Second, shutdownTracing, zap.NewNop())
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return after the listener failed")
	}
	assert.True(t, runner.stopped.Load(), "background runner stopped before return")
	assert.True(t, tracingFlushed.Load())
	assert.NoError(t, ctx.Err(), "parent context left untouched")
}

func TestRunServer_ShutdownOnCancel(t *testing.T) {
	runner := &blockingRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- runServer(ctx, &http.Server{Addr: "127.0.0.1:0"}, runner, time.Second,
			func(context.Context) error { return nil }, zap.NewNop())
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
	assert.True(t, runner.stopped.Load())
}

func TestBuildApp_ScopesIdentityCache(t *testing.T) {
	srv := createTestProvider(t)
	cfg, err := config.LoadFromFile(writeTestConfig(t, srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, zap.NewNop(), buildOptions{})
	require.NoError(t, err)
	defer a.Close()

	employees, err := a.provider.GetEmployees(ctx)
	require.NoError(t, err)
	a.resolver.Resolve(ctx, employees)

	_, ok, err := a.cache.Get(ctx, identityCachePrefix+"technicians")
	require.NoError(t, err)
	assert.True(t, ok, "matches stored under the identity prefix")
}
