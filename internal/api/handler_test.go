package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bizhealth/bizhealth/internal/history"
	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

var now = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

// memHistory is an in-memory report index implementing both
// ingestion.ReportStore and HistoryReader.
type memHistory struct {
	mu      sync.Mutex
	reports []history.Report
}

func (m *memHistory) RecordReport(ctx context.Context, r *history.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.WorkspaceID = "ws-" + r.Workspace
	r.CreatedAt = now
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memHistory) GetReport(ctx context.Context, id string) (*history.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, history.ErrNotFound
}

func (m *memHistory) ListWorkspaces(ctx context.Context) ([]history.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []history.Workspace{}
	for _, r := range m.reports {
		if !seen[r.Workspace] {
			seen[r.Workspace] = true
			out = append(out, history.Workspace{ID: r.WorkspaceID, Name: r.Workspace})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memHistory) ListReports(ctx context.Context, workspace string, limit int) ([]history.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []history.Report{}
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].Workspace == workspace {
			out = append(out, m.reports[i])
		}
	}
	if len(out) == 0 {
		return nil, history.ErrNotFound
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memHistory) Trend(ctx context.Context, workspace string, since time.Time) ([]history.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []history.Point{}
	found := false
	for _, r := range m.reports {
		if r.Workspace != workspace {
			continue
		}
		found = true
		if !r.ScoredAt.Before(since) {
			out = append(out, history.Point{ReportID: r.ID, ScoredAt: r.ScoredAt, Total: r.Total})
		}
	}
	if !found {
		return nil, history.ErrNotFound
	}
	return out, nil
}

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *memHistory) {
	t.Helper()
	hist := &memHistory{}
	svc := ingestion.NewService(
		scoring.NewDefaultEngine(scoring.FixedClock(now)),
		ingestion.NewLocalStorage(t.TempDir()),
		hist, nil, nil,
	)
	h := NewHandler(Deps{
		Reports: svc,
		History: hist,
		Clients: clienthealth.New(clienthealth.DefaultRules(), scoring.FixedClock(now)),
		Cache:   NewReportCache(4),
		APIKey:  apiKey,
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, hist
}

const factsJSON = `{
  "workspace": "acme",
  "as_of": "2026-05-10",
  "profit": {"current_rate": 95, "target_rate": 100, "current_hours": 120, "mtd_target_hours": 140},
  "cashflow": {"dio_equivalent": 28, "overdue_count": 1, "overdue_amount": 900},
  "risk": {"top_client_name": "Initech", "top_client_share": 42}
}`

const factsYAML = `workspace: acme
as_of: "2026-05-11"
profit:
  current_rate: 100
  target_rate: 100
`

func do(t *testing.T, method, url, contentType, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type scoreBody struct {
	ReportID  string         `json:"report_id"`
	Workspace string         `json:"workspace"`
	Result    scoring.Result `json:"result"`
}

func TestScoreAndReadBack(t *testing.T) {
	srv, hist := newTestServer(t, "")

	resp := do(t, "POST", srv.URL+"/api/v1/score", "application/json", factsJSON)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /score status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	var created scoreBody
	decode(t, resp, &created)
	if created.ReportID == "" || created.Workspace != "acme" || len(created.Result.Trees) != 4 {
		t.Fatalf("unexpected score response %+v", created)
	}
	if len(hist.reports) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(hist.reports))
	}

	resp = do(t, "GET", srv.URL+"/api/v1/scores/"+created.ReportID, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /scores/{id} status = %d", resp.StatusCode)
	}
	var got scoreBody
	decode(t, resp, &got)
	if got.Result.Total != created.Result.Total {
		t.Errorf("read-back total %v, want %v", got.Result.Total, created.Result.Total)
	}

	resp = do(t, "GET", srv.URL+"/api/v1/scores/"+created.ReportID+"?format=markdown", "", "")
	var md bytes.Buffer
	_, _ = md.ReadFrom(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown") || !strings.Contains(md.String(), "Business Health: acme") {
		t.Errorf("unexpected markdown response %q:\n%s", resp.Header.Get("Content-Type"), md.String())
	}

	resp = do(t, "GET", srv.URL+"/api/v1/scores/"+created.ReportID+"?format=xml", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("format=xml status = %d, want 400", resp.StatusCode)
	}
}

func TestScoreAcceptsYAML(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp := do(t, "POST", srv.URL+"/api/v1/score", "application/yaml", factsYAML)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created scoreBody
	decode(t, resp, &created)
	if !created.Result.ScoredAt.Equal(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("as_of not honoured: %v", created.Result.ScoredAt)
	}
}

func TestScoreRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp := do(t, "POST", srv.URL+"/api/v1/score", "application/json", "{not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTreeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	var created scoreBody
	decode(t, do(t, "POST", srv.URL+"/api/v1/score", "application/json", factsJSON), &created)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, tr treeBody)
	}{
		{
			name:       "collapsed tree shows root and first level",
			path:       "/trees/profit",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, tr treeBody) {
				if tr.State.Active != "" || len(tr.Visible) != 3 || tr.Visible[0] != "profit" {
					t.Errorf("unexpected collapsed view %+v", tr)
				}
			},
		},
		{
			name:       "activating a branch reveals its children",
			path:       "/trees/profit?activate=time_utilization_efficiency",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, tr treeBody) {
				if tr.State.Active != "time_utilization_efficiency" || len(tr.Visible) != 6 {
					t.Errorf("unexpected active view %+v", tr)
				}
			},
		},
		{
			name:       "focusing a leaf activates its branch",
			path:       "/trees/PROFIT?focus=billable_ratio",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, tr treeBody) {
				if tr.State.Active != "time_utilization_efficiency" || tr.State.Focus != "billable_ratio" {
					t.Errorf("unexpected focus state %+v", tr.State)
				}
			},
		},
		{name: "unknown category", path: "/trees/marketing", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, "GET", srv.URL+"/api/v1/scores/"+created.ReportID+tc.path, "", "")
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.check != nil {
				var tr treeBody
				decode(t, resp, &tr)
				tc.check(t, tr)
			}
		})
	}
}

type treeBody struct {
	State struct {
		Active string `json:"active"`
		Focus  string `json:"focus"`
	} `json:"state"`
	Visible []string `json:"visible"`
}

func TestUnknownScore(t *testing.T) {
	srv, _ := newTestServer(t, "")
	for _, path := range []string{"/api/v1/scores/missing", "/api/v1/scores/missing/trees/risk"} {
		if resp := do(t, "GET", srv.URL+path, "", ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
	if resp := do(t, "POST", srv.URL+"/api/v1/scores/missing/rescore", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("rescore of missing report status = %d, want 404", resp.StatusCode)
	}
}

func TestRescoreAndHistory(t *testing.T) {
	srv, _ := newTestServer(t, "")
	var first scoreBody
	decode(t, do(t, "POST", srv.URL+"/api/v1/score", "application/json", factsJSON), &first)

	resp := do(t, "POST", srv.URL+"/api/v1/scores/"+first.ReportID+"/rescore", "", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rescore status = %d", resp.StatusCode)
	}
	var second scoreBody
	decode(t, resp, &second)
	if second.ReportID == first.ReportID || second.Result.Total != first.Result.Total {
		t.Errorf("unexpected rescore %s total %v", second.ReportID, second.Result.Total)
	}

	var workspaces []history.Workspace
	decode(t, do(t, "GET", srv.URL+"/api/v1/workspaces", "", ""), &workspaces)
	if len(workspaces) != 1 || workspaces[0].Name != "acme" {
		t.Errorf("unexpected workspaces %+v", workspaces)
	}

	var reports []history.Report
	decode(t, do(t, "GET", srv.URL+"/api/v1/workspaces/acme/scores?limit=1", "", ""), &reports)
	if len(reports) != 1 || reports[0].ID != second.ReportID {
		t.Errorf("expected newest report only, got %+v", reports)
	}

	var trend struct {
		Points []history.Point `json:"points"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/workspaces/acme/history?since=2026-01-01", "", ""), &trend)
	if len(trend.Points) != 2 {
		t.Errorf("expected 2 trend points, got %+v", trend.Points)
	}

	for path, want := range map[string]int{
		"/api/v1/workspaces/nobody/scores":                http.StatusNotFound,
		"/api/v1/workspaces/acme/scores?limit=0":          http.StatusBadRequest,
		"/api/v1/workspaces/acme/history?since=yesterday": http.StatusBadRequest,
		"/api/v1/workspaces/acme/history?days=-3":         http.StatusBadRequest,
	} {
		if resp := do(t, "GET", srv.URL+path, "", ""); resp.StatusCode != want {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestScoreClients(t *testing.T) {
	srv, _ := newTestServer(t, "")

	body := `{"sort": "risk", "clients": [
	  {"id": "a", "name": "Initech", "revenue": {"this_month": 5000, "last_month": 5000},
	   "payment": {"average_days": 25}, "projects": {"active": 2},
	   "engagement": {"last_activity": "2026-05-08", "hours_this_month": 20}},
	  {"id": "b", "name": "Umbrella", "revenue": {"this_month": 2100, "last_month": 6800},
	   "payment": {"average_days": 52, "overdue_amount": 3200, "overdue_count": 1},
	   "projects": {"active": 1, "on_hold": 1},
	   "engagement": {"last_activity": "2026-04-19", "hours_this_month": 12}}
	]}`
	resp := do(t, "POST", srv.URL+"/api/v1/clients/score", "application/json", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got scoreClientsResponse
	decode(t, resp, &got)
	if len(got.Clients) != 2 || got.Clients[0].Client.ID != "b" || got.Clients[0].Score != 55 {
		t.Errorf("expected riskiest client first, got %+v", got.Clients)
	}
	if got.Summary.Total != 2 || got.Summary.ByStatus[clienthealth.StatusWarning] != 1 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}

	resp = do(t, "POST", srv.URL+"/api/v1/clients/score", "application/json", `{"sort": "name", "clients": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad sort status = %d, want 400", resp.StatusCode)
	}
}

func TestAPIKeyProtectsWrites(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")

	if resp := do(t, "POST", srv.URL+"/api/v1/score", "application/json", factsJSON); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated write status = %d, want 401", resp.StatusCode)
	}
	if resp := do(t, "POST", srv.URL+"/api/v1/score", "application/json", factsJSON, "X-API-Key", "s3cret"); resp.StatusCode != http.StatusCreated {
		t.Errorf("authenticated write status = %d, want 201", resp.StatusCode)
	}
	if resp := do(t, "GET", srv.URL+"/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecksDatabase(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"reachable", nil, http.StatusOK},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{
				Health: pingFunc(func(context.Context) error { return tt.err }),
			})
			srv := httptest.NewServer(h.Routes())
			defer srv.Close()

			resp := do(t, "GET", srv.URL+"/healthz", "", "")
			if resp.StatusCode != tt.want {
				t.Errorf("healthz status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body map[string]string
			decode(t, resp, &body)
			if tt.err != nil && body["status"] != "unavailable" {
				t.Errorf("status = %q, want unavailable", body["status"])
			}
		})
	}
}

func TestReportCacheEvictsOldest(t *testing.T) {
	c := NewReportCache(2)
	c.Put("a", &ingestion.Report{ID: "a"})
	c.Put("b", &ingestion.Report{ID: "b"})
	c.Get("a") // a becomes most recent
	c.Put("c", &ingestion.Report{ID: "c"})

	if c.Get("b") != nil {
		t.Error("expected b to be evicted")
	}
	if c.Get("a") == nil || c.Get("c") == nil {
		t.Error("expected a and c to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestWebhookMountedWhenConfigured(t *testing.T) {
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(NewHandler(Deps{Webhook: hook, APIKey: "s3cret"}).Routes())
	t.Cleanup(srv.Close)

	// Deliveries are signed, so the API key is not required.
	if resp := do(t, "POST", srv.URL+"/api/v1/webhooks/facts", "application/json", "{}"); resp.StatusCode != http.StatusAccepted {
		t.Errorf("webhook status = %d, want 202", resp.StatusCode)
	}

	bare, _ := newTestServer(t, "")
	if resp := do(t, "POST", bare.URL+"/api/v1/webhooks/facts", "application/json", "{}"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unconfigured webhook status = %d, want 404", resp.StatusCode)
	}
}
