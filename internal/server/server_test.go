package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyboarder/internal/api"
	"storyboarder/internal/config"
	"storyboarder/internal/jobs"
	"storyboarder/internal/services/llm"
	"storyboarder/internal/testsupport"
)

const stormBody = `{"transcript":[
	{"timestamp":"00:00:00","text":"The storm"},
	{"timestamp":1,"text":"arrived."},
	{"timestamp":"2","text":"Waves"},
	{"timestamp":3,"text":"rose"},
	{"timestamp":4,"text":"high."}
]}`

func newTestServer(t *testing.T, completer llm.Completer, opts ...testsupport.ConfigOption) (*Server, *Runtime, *config.Config) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithStoryboardDefaults("watercolor", "a harbour town", "Keeper")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	rt, err := OpenRuntime(context.Background(), cfg, nil, WithCompleter(completer, "test-model"))
	if err != nil {
		t.Fatalf("OpenRuntime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	srv, err := New(cfg, rt.Service, WithModel(rt.Provider.Model))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, rt, cfg
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func withBody(body, extra string) string {
	return strings.TrimSuffix(strings.TrimSpace(body), "}") + extra + "}"
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &testsupport.Completer{})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.HealthResponse](t, rec)
	if resp.Status != "ok" || resp.Model != "test-model" {
		t.Fatalf("unexpected health: %#v", resp)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer(t, &testsupport.Completer{}, testsupport.WithAPIToken("secret"))

	if rec := do(t, srv.Handler(), http.MethodGet, "/api/health", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/health", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/health", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestPlanEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &testsupport.Completer{})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/plan", withBody(stormBody, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.PlanResponse](t, rec)
	if resp.Seconds != 5 || len(resp.Clips) != 2 || resp.Clips[0].Verbatim != "The storm arrived." {
		t.Fatalf("unexpected plan: %#v", resp)
	}

	bad := do(t, srv.Handler(), http.MethodPost, "/api/plan", "{")
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", bad.Code)
	}
	badStamp := do(t, srv.Handler(), http.MethodPost, "/api/plan", `{"transcript":[{"timestamp":"soon","text":"x"}]}`)
	if badStamp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", badStamp.Code)
	}
	for _, stamp := range []string{`1e19`, `2000000000`, `"100:00:00"`} {
		body := `{"transcript":[{"timestamp":0,"text":"a"},{"timestamp":` + stamp + `,"text":"b"}]}`
		if rec := do(t, srv.Handler(), http.MethodPost, "/api/plan", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for timestamp %s, got %d", stamp, rec.Code)
		}
	}
}

func TestSynchronousStoryboard(t *testing.T) {
	completer := &testsupport.Completer{}
	srv, _, _ := newTestServer(t, completer)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/storyboards", withBody(stormBody, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.GenerateResponse](t, rec)
	if resp.Job.Status != string(jobs.StatusCompleted) || resp.Job.Source != "api" {
		t.Fatalf("unexpected job: %#v", resp.Job)
	}
	if resp.Storyboard == nil || len(resp.Storyboard.Rows) != 2 || resp.Storyboard.Rows[1].Timestamp != "00:00:02" {
		t.Fatalf("unexpected storyboard: %#v", resp.Storyboard)
	}
	if completer.Calls() != 1 {
		t.Fatalf("expected one completion, got %d", completer.Calls())
	}

	jobRec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+resp.Job.ID, "")
	if jobRec.Code != http.StatusOK {
		t.Fatalf("job status %d", jobRec.Code)
	}
	job := decode[api.JobResponse](t, jobRec).Job
	if len(job.Storyboard) == 0 {
		t.Fatal("expected stored storyboard on job detail")
	}

	events := do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+resp.Job.ID+"/events", "")
	if events.Code != http.StatusOK || !strings.Contains(events.Body.String(), "event:completed") {
		t.Fatalf("expected synthesized terminal event, got %d %q", events.Code, events.Body.String())
	}
}

func TestStoryboardExhaustionReturnsDetails(t *testing.T) {
	completer := &testsupport.Completer{}
	srv, _, _ := newTestServer(t, completer)

	body := withBody(stormBody, `,"animation_style":"the same watercolor","max_repair_passes":0`)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/storyboards", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ErrorResponse](t, rec)
	if resp.JobID == "" || len(resp.Details) == 0 {
		t.Fatalf("expected job id and details, got %#v", resp)
	}

	jobRec := do(t, srv.Handler(), http.MethodGet, "/api/jobs?status=invalid", "")
	list := decode[api.JobListResponse](t, jobRec)
	if len(list.Jobs) != 1 || list.Jobs[0].ID != resp.JobID {
		t.Fatalf("expected invalid job listed, got %#v", list.Jobs)
	}
}

func TestStoryboardRejectsEmptyTranscript(t *testing.T) {
	srv, _, _ := newTestServer(t, &testsupport.Completer{})
	rec := do(t, srv.Handler(), http.MethodPost, "/api/storyboards", `{"transcript":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAsyncStoryboard(t *testing.T) {
	srv, rt, _ := newTestServer(t, &testsupport.Completer{})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/storyboards", withBody(stormBody, `,"async":true`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	job := decode[api.JobResponse](t, rec).Job
	if loc := rec.Header().Get("Location"); loc != "/api/jobs/"+job.ID {
		t.Fatalf("unexpected Location %q", loc)
	}

	rt.Service.Wait()
	got := decode[api.JobResponse](t, do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID, "")).Job
	if got.Status != string(jobs.StatusCompleted) || got.Attempts != 1 {
		t.Fatalf("unexpected job after wait: %#v", got)
	}
}

func TestJobsEndpoints(t *testing.T) {
	srv, rt, _ := newTestServer(t, &testsupport.Completer{})
	testsupport.NewJob(t, rt.Store, "watercolor", "a harbour town", "Keeper")
	testsupport.NewJob(t, rt.Store, "ink", "a forest", "Fox")

	list := decode[api.JobListResponse](t, do(t, srv.Handler(), http.MethodGet, "/api/jobs?status=pending,failed&limit=1", ""))
	if len(list.Jobs) != 1 || list.Jobs[0].AnimationStyle != "ink" {
		t.Fatalf("expected newest pending job, got %#v", list.Jobs)
	}

	if rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	pending := list.Jobs[0].ID
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+pending+"/events", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending job without stream, got %d", rec.Code)
	}

	health := decode[api.HealthResponse](t, do(t, srv.Handler(), http.MethodGet, "/api/health", ""))
	if health.Jobs["pending"] != 2 {
		t.Fatalf("expected 2 pending in health, got %#v", health.Jobs)
	}
}

type gatedCompleter struct {
	release chan struct{}
}

func (g *gatedCompleter) CompleteJSON(ctx context.Context, _, _ string) (string, error) {
	select {
	case <-g.release:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestLiveEventStream(t *testing.T) {
	gate := &gatedCompleter{release: make(chan struct{})}
	srv, rt, _ := newTestServer(t, gate)
	httpServer := httptest.NewServer(srv.Handler())
	defer httpServer.Close()

	resp, err := http.Post(httpServer.URL+"/api/storyboards", "application/json", bytes.NewBufferString(withBody(stormBody, `,"async":true`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var accepted api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/api/jobs/"+accepted.Job.ID+"/events", nil)
	stream, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	close(gate.release)
	body, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	text := string(body)
	started := strings.Index(text, "event:attempt_started")
	completed := strings.Index(text, "event:completed")
	if started < 0 || completed < 0 || started > completed {
		t.Fatalf("unexpected event stream:\n%s", text)
	}
	rt.Service.Wait()
}

func TestStartHoldsLock(t *testing.T) {
	first, _, cfg := newTestServer(t, &testsupport.Completer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()
	if first.Addr() == "" {
		t.Fatal("expected bound address")
	}

	rt, err := OpenRuntime(context.Background(), cfg, nil, WithCompleter(&testsupport.Completer{}, "test-model"))
	if err != nil {
		t.Fatalf("OpenRuntime: %v", err)
	}
	defer rt.Close()
	second, err := New(cfg, rt.Service)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	resp, err := http.Get("http://" + first.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("health over tcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStatsAndRemoveJob(t *testing.T) {
	srv, rt, _ := newTestServer(t, &testsupport.Completer{})
	pending := testsupport.NewJob(t, rt.Store, "ink", "a forest", "Fox")

	created := decode[api.GenerateResponse](t, do(t, srv.Handler(), http.MethodPost, "/api/storyboards", withBody(stormBody, "")))

	stats := decode[api.JobStatsResponse](t, do(t, srv.Handler(), http.MethodGet, "/api/stats", ""))
	if stats.Counts["pending"] != 1 || stats.Counts["completed"] != 1 || stats.Counts["invalid"] != 0 {
		t.Fatalf("unexpected stats %#v", stats.Counts)
	}

	if rec := do(t, srv.Handler(), http.MethodDelete, "/api/jobs/"+pending.ID, ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 removing pending job, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodDelete, "/api/jobs/"+created.Job.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv.Handler(), http.MethodDelete, "/api/jobs/"+created.Job.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rec.Code)
	}
}
