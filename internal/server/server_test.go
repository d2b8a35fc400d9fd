package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/config"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/db"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/engine"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/migrate"
)

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProject(t *testing.T, srv *testServer, id, org, name string, extra map[string]any) {
	t.Helper()
	body := map[string]any{"id": id, "org_id": org, "name": name}
	for k, v := range extra {
		body[k] = v
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects", body, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	// Health stays open.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}
}

func TestScanCreatesSignalsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createProject(t, srv, "proj-1", "org-1", "Alpha", map[string]any{"end_date": "2020-01-01"})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/scan", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("scan: %d %s", res.StatusCode, string(data))
	}
	var scan ScanResponse
	if err := json.Unmarshal(data, &scan); err != nil {
		t.Fatalf("unmarshal scan: %v", err)
	}
	if len(scan.Signals) != 1 || scan.Signals[0].Type != "schedule_variance" {
		t.Fatalf("scan signals = %+v", scan.Signals)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/organizations/org-1/signals", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list signals: %d %s", res.StatusCode, string(data))
	}
	var signals []SignalResponse
	if err := json.Unmarshal(data, &signals); err != nil {
		t.Fatalf("unmarshal signals: %v", err)
	}
	if len(signals) != 1 || signals[0].Status != "unacknowledged" {
		t.Fatalf("signals = %+v", signals)
	}
}

func TestSignalAckResolveOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createProject(t, srv, "proj-1", "org-1", "Alpha", map[string]any{"end_date": "2020-01-01"})
	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/scan", nil, actorHeader)
	var scan ScanResponse
	if err := json.Unmarshal(data, &scan); err != nil || len(scan.Signals) == 0 {
		t.Fatalf("scan: %v %s", err, string(data))
	}
	signalID := scan.Signals[0].ID

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/signals/"+signalID+"/acknowledge", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge: %d %s", res.StatusCode, string(data))
	}
	var s SignalResponse
	_ = json.Unmarshal(data, &s)
	if s.Status != "acknowledged" || s.AcknowledgedBy == nil || *s.AcknowledgedBy != "tester" {
		t.Fatalf("after ack: %+v", s)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/signals/"+signalID+"/resolve", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", res.StatusCode, string(data))
	}

	// Acknowledging after resolution conflicts.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/signals/"+signalID+"/acknowledge", nil, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("ack after resolve: %d %s", res.StatusCode, string(data))
	}

	// Unknown signal id is a 404.
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/signals/ghost/resolve", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("stale id resolve: %d", res.StatusCode)
	}
}

func TestAllocationPreCommitOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createProject(t, srv, "proj-1", "org-1", "Alpha", nil)
	createProject(t, srv, "proj-2", "org-1", "Beta", nil)

	first := map[string]any{
		"resource_id": "res-1", "project_id": "proj-1",
		"start_date": "2025-06-01", "end_date": "2025-06-10",
		"allocation_percentage": 70,
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/allocations", first, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first allocation: %d %s", res.StatusCode, string(data))
	}

	second := map[string]any{
		"resource_id": "res-1", "project_id": "proj-2",
		"start_date": "2025-06-05", "end_date": "2025-06-15",
		"allocation_percentage": 50,
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/allocations", second, actorHeader)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("conflicting allocation: %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				OverloadedDays []OverloadedDayResponse `json:"overloaded_days"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "allocation_conflict" || len(envelope.Error.Details.OverloadedDays) != 6 {
		t.Fatalf("envelope = %s", string(data))
	}

	// force saves it anyway.
	second["force"] = true
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/allocations", second, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("forced allocation: %d %s", res.StatusCode, string(data))
	}
	var saved domain.Allocation
	if err := json.Unmarshal(data, &saved); err != nil || saved.ID == "" {
		t.Fatalf("saved allocation: %v %s", err, string(data))
	}
}

func TestAllocationValidationOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createProject(t, srv, "proj-1", "org-1", "Alpha", nil)

	bad := map[string]any{
		"resource_id": "res-1", "project_id": "proj-1",
		"start_date": "2025-06-10", "end_date": "2025-06-01",
		"allocation_percentage": 50,
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/allocations", bad, actorHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted window: %d %s", res.StatusCode, string(data))
	}
}

func TestConflictResolvedFilterOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	for _, c := range []domain.Conflict{
		{ID: "conf-1", ResourceID: "res-1", ConflictDate: "2025-06-05", TotalPercent: 120, Severity: domain.SeverityMedium, CreatedAt: "2025-06-01T12:00:00Z"},
		{ID: "conf-2", ResourceID: "res-1", ConflictDate: "2025-06-06", TotalPercent: 130, Severity: domain.SeverityHigh, CreatedAt: "2025-06-01T12:00:00Z"},
	} {
		if _, err := srv.Engine.Repo.InsertConflictIfAbsent(ctx, c); err != nil {
			t.Fatalf("seed conflict: %v", err)
		}
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/conflicts/conf-1/resolve", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", res.StatusCode, string(data))
	}

	list := func(query string) []domain.Conflict {
		t.Helper()
		res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/conflicts"+query, nil, actorHeader)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list %q: %d %s", query, res.StatusCode, string(data))
		}
		var items []domain.Conflict
		if err := json.Unmarshal(data, &items); err != nil {
			t.Fatalf("unmarshal %q: %v", query, err)
		}
		return items
	}
	if items := list(""); len(items) != 2 {
		t.Fatalf("unfiltered = %d, want 2", len(items))
	}
	open := list("?resolved=false")
	if len(open) != 1 || open[0].ID != "conf-2" || open[0].Resolved {
		t.Fatalf("open = %+v", open)
	}
	closed := list("?resolved=true")
	if len(closed) != 1 || closed[0].ID != "conf-1" || !closed[0].Resolved {
		t.Fatalf("closed = %+v", closed)
	}

	// Anything other than true/false is rejected by the schema.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/conflicts?resolved=maybe", nil, actorHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter: %d", res.StatusCode)
	}
}

func TestActiveSignalsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createProject(t, srv, "proj-1", "org-1", "Alpha", map[string]any{"end_date": "2020-01-01"})

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/scan", nil, actorHeader)
	var scan ScanResponse
	if err := json.Unmarshal(data, &scan); err != nil || len(scan.Signals) != 1 {
		t.Fatalf("first scan: %v %s", err, string(data))
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/signals/"+scan.Signals[0].ID+"/resolve", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", res.StatusCode, string(data))
	}
	// A second scan records a fresh, unresolved signal.
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/scan", nil, actorHeader)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/organizations/org-1/signals?active=true", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("active list: %d %s", res.StatusCode, string(data))
	}
	var active []SignalResponse
	if err := json.Unmarshal(data, &active); err != nil {
		t.Fatalf("unmarshal active: %v", err)
	}
	if len(active) != 1 || active[0].Status == "resolved" {
		t.Fatalf("active = %+v", active)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/organizations/org-1/signals", nil, actorHeader)
	var all []SignalResponse
	if err := json.Unmarshal(data, &all); err != nil || len(all) != 2 {
		t.Fatalf("all signals: %v %s", err, string(data))
	}
}

func TestRiskProfileOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createProject(t, srv, "proj-1", "org-1", "Alpha", map[string]any{"end_date": "2020-01-01"})
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/scan", nil, actorHeader)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/proj-1/risk-profile", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("profile: %d %s", res.StatusCode, string(data))
	}
	var p engine.RiskProfile
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if p.TotalSignals != 1 || p.OverallRiskScore == 0 {
		t.Fatalf("profile = %+v", p)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/ghost/risk-profile", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project profile: %d", res.StatusCode)
	}
}
