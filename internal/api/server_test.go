package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"lens-tracker/internal/auth"
	"lens-tracker/internal/config"
	"lens-tracker/internal/db"
	"lens-tracker/internal/sheets"
	"lens-tracker/internal/statussync"
	"lens-tracker/internal/tracking"
)

const (
	adminToken  = "admin-token"
	bodegaToken = "bodega-token"
)

func newTestServer(t *testing.T, canonical ...sheets.Row) (*Server, *sheets.MemoryStore) {
	t.Helper()
	srv, store, _ := newTestServerWithDB(t, canonical...)
	return srv, store
}

func newTestServerWithDB(t *testing.T, canonical ...sheets.Row) (*Server, *sheets.MemoryStore, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	ctx := context.Background()
	store := sheets.NewMemoryStore()
	cfg := config.Default()
	cfg.PostgresDSN = "postgres://secret@db/lens"
	store.EnsureSheet(ctx, cfg.CanonicalSheet, sheets.CanonicalHeader)
	store.EnsureSheet(ctx, cfg.TransactionSheet, sheets.TransactionHeader)
	for _, src := range cfg.SyncSources {
		store.EnsureSheet(ctx, src.Sheet, sheets.AreaHeader)
	}
	if len(canonical) > 0 {
		if err := store.AppendRows(ctx, cfg.CanonicalSheet, sheets.MustRange(cfg.CanonicalRange), canonical); err != nil {
			t.Fatalf("seed canonical: %v", err)
		}
	}
	svc, err := tracking.New(store, cfg)
	if err != nil {
		t.Fatalf("tracking.New: %v", err)
	}
	syncer := statussync.New(store, cfg, statussync.OnSynced(svc.Invalidate))
	identity := auth.StaticProvider{
		adminToken:  {Email: "boss@example.com", Role: auth.RoleAdmin},
		bodegaToken: {Email: "ana@example.com", Role: auth.RoleBodega},
	}
	return NewServer(cfg, svc, syncer, identity, database), store, database
}

func do(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/health status = %d, want 200", rec.Code)
	}
}

func TestAuth_Required(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/status", "/api/production", "/api/jobs/1", "/api/sync/status"} {
		rec := do(t, srv, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rec.Code)
		}
		rec = do(t, srv, http.MethodGet, path, "wrong", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token = %d, want 401", path, rec.Code)
		}
	}
}

func TestDashboards_AdminOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/production", "/api/delayed", "/api/queues", "/api/config"} {
		rec := do(t, srv, http.MethodGet, path, bodegaToken, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s as worker = %d, want 403", path, rec.Code)
		}
		rec = do(t, srv, http.MethodGet, path, adminToken, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s as admin = %d, want 200", path, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodPost, "/api/sync", bodegaToken, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST /api/sync as worker = %d, want 403", rec.Code)
	}
}

func TestDelayed_ReturnsJSON(t *testing.T) {
	srv, _ := newTestServer(t,
		sheets.Row{"123", "2024-01-02T10:00:00Z", "Bodega", "Digitacion", "alice", "2024-01-10"},
	)
	rec := do(t, srv, http.MethodGet, "/api/delayed", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Jobs []struct {
			JobNumber string `json:"jobNumber"`
			DelayDays int    `json:"delayDays"`
		} `json:"jobs"`
		Summary struct {
			Count int `json:"count"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The due date is long past whatever day the test runs on.
	if len(out.Jobs) != 1 || out.Jobs[0].JobNumber != "123" || out.Jobs[0].DelayDays <= 0 {
		t.Errorf("jobs = %+v", out.Jobs)
	}
	if out.Summary.Count != 1 {
		t.Errorf("summary count = %d, want 1", out.Summary.Count)
	}
}

func TestServerTimingHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/production", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if h := rec.Header().Get("Server-Timing"); !strings.Contains(h, "store") {
		t.Errorf("Server-Timing = %q, want a store metric", h)
	}
}

func TestStoreFailure_503WithTimestamp(t *testing.T) {
	srv, store := newTestServer(t)
	store.FailGet = map[string]error{"Estados": errors.New("quota")}

	rec := do(t, srv, http.MethodGet, "/api/production", adminToken, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" || body["timestamp"] == "" {
		t.Errorf("error body = %v", body)
	}
}

func TestJobLookup(t *testing.T) {
	srv, _ := newTestServer(t,
		sheets.Row{"9", "2024-01-02T10:00:00Z", "Bodega", "Digitacion", "alice", "2024-01-10"},
	)
	rec := do(t, srv, http.MethodGet, "/api/jobs/9", bodegaToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/jobs/9 = %d", rec.Code)
	}
	var out struct {
		JobNumber string `json:"jobNumber"`
		Current   struct {
			Status string `json:"status"`
		} `json:"current"`
	}
	json.NewDecoder(rec.Body).Decode(&out)
	if out.JobNumber != "9" || out.Current.Status != "Digitacion" {
		t.Errorf("job = %+v", out)
	}

	rec = do(t, srv, http.MethodGet, "/api/jobs/404", bodegaToken, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/jobs/404 = %d, want 404", rec.Code)
	}
}

func TestRecordEvent_RoleGated(t *testing.T) {
	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/events", bodegaToken, `{"jobNumber":"5","status":"Digitacion","dueDate":"2024-01-20"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/events = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.Len("Bodega") != 2 {
		t.Errorf("Bodega rows = %d, want 2", store.Len("Bodega"))
	}

	rec = do(t, srv, http.MethodPost, "/api/events", bodegaToken, `{"jobNumber":"5","area":"Despacho","status":"Trento"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("worker writing another area = %d, want 403", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/events", bodegaToken, `{"jobNumber":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/events", bodegaToken, `{"status":"Digitacion"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing job = %d, want 400", rec.Code)
	}
}

func TestManualSync(t *testing.T) {
	srv, store := newTestServer(t)
	store.AppendRows(context.Background(), "Bodega", sheets.MustRange("A2:E"),
		[]sheets.Row{{"1", "2024-01-15T09:00:00Z", "Digitacion", "ana"}})

	rec := do(t, srv, http.MethodPost, "/api/sync", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/sync = %d, body %s", rec.Code, rec.Body.String())
	}
	var res statussync.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.SyncedCount != 1 || res.LastSync == nil {
		t.Errorf("result = %+v", res)
	}

	tx, _ := store.GetRows(context.Background(), "Transacciones", sheets.MustRange("A2:D"))
	if len(tx) != 1 || tx[0].Cell(sheets.TxColActor) != "boss@example.com" {
		t.Errorf("checkpoint rows = %v", tx)
	}
}

func TestManualSync_Failure(t *testing.T) {
	srv, store := newTestServer(t)
	store.FailGet = map[string]error{"Transacciones": errors.New("down")}

	rec := do(t, srv, http.MethodPost, "/api/sync", adminToken, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("POST /api/sync = %d, want 503", rec.Code)
	}
	var res statussync.Result
	json.NewDecoder(rec.Body).Decode(&res)
	if res.Success || res.Message == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/sync/status", bodegaToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&out)
	if out["state"] != string(statussync.Idle) {
		t.Errorf("state = %v, want Idle", out["state"])
	}
}

func TestStatus_IncludesSyncState(t *testing.T) {
	srv, _ := newTestServer(t,
		sheets.Row{"1", "2024-01-10T09:00:00Z", "Bodega", "Digitacion", "u"},
	)
	rec := do(t, srv, http.MethodGet, "/api/status", bodegaToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&out)
	if out["events"] != float64(1) || out["syncState"] != "Idle" {
		t.Errorf("status = %v", out)
	}
}

func TestConfig_RedactsDSN(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/config", adminToken, "")
	if strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("config leaks DSN: %s", rec.Body.String())
	}
	var out config.Config
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if out.CanonicalSheet != "Estados" {
		t.Errorf("config = %+v", out)
	}
}

func TestSetConfig_PersistsForNextStart(t *testing.T) {
	srv, _, database := newTestServerWithDB(t)

	rec := do(t, srv, http.MethodPost, "/api/config", adminToken,
		`{"sync_interval_minutes":15,"sync_start_hour":7,"postgres_dsn":"postgres://other"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/config = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Config          config.Config `json:"config"`
		RestartRequired bool          `json:"restartRequired"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Config.SyncIntervalMinutes != 15 || !out.RestartRequired {
		t.Errorf("response = %+v", out)
	}
	if out.Config.PostgresDSN != "***" {
		t.Errorf("response DSN = %q, want redacted", out.Config.PostgresDSN)
	}

	saved := database.LoadConfig()
	if saved.SyncIntervalMinutes != 15 || saved.SyncStartHour != 7 || saved.SyncEndHour != 18 {
		t.Errorf("saved config = %+v", saved)
	}
	if len(saved.SyncSources) != len(config.Default().SyncSources) {
		t.Errorf("saved sources = %d, want defaults kept", len(saved.SyncSources))
	}
	if srv.cfg.SyncIntervalMinutes != 60 || srv.cfg.PostgresDSN != "postgres://secret@db/lens" {
		t.Errorf("running config changed: %+v", srv.cfg)
	}
}

func TestSetConfig_Rejects(t *testing.T) {
	srv, _, database := newTestServerWithDB(t)

	rec := do(t, srv, http.MethodPost, "/api/config", bodegaToken, `{"sync_interval_minutes":15}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("worker POST /api/config = %d, want 403", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/config", adminToken, `{"sync_start_hour":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/config", adminToken, `{"sync_start_hour":19}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted window = %d, want 400", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/config", adminToken, `{"canonical_range":"F2:A"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad range = %d, want 400", rec.Code)
	}
	if got := database.LoadConfig(); got.SyncStartHour != 8 || got.CanonicalRange != "A2:F" {
		t.Errorf("rejected update was saved: %+v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodOptions, "/api/production", "", "")
	if rec.Code != 204 {
		t.Errorf("OPTIONS = %d, want 204", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("CORS headers = %v", rec.Header())
	}
}
