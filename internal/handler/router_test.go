package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/service"
	"github.com/shortify/shortify/internal/summarizer"
	"github.com/shortify/shortify/internal/testutil"
)

type fakeLatest struct {
	got  model.PeriodKey
	resp summarizer.LatestResponse
	err  error
}

func (f *fakeLatest) Latest(ctx context.Context, period model.PeriodKey) (summarizer.LatestResponse, error) {
	f.got = period
	if f.err != nil {
		return summarizer.LatestResponse{}, f.err
	}
	resp := f.resp
	resp.PeriodKey = period
	return resp, nil
}

type fakeStats struct {
	gotID, gotPeriod string
	resp             *service.StatsResponse
	err              error
}

func (f *fakeStats) Get(ctx context.Context, shortID, period string) (*service.StatsResponse, error) {
	f.gotID, f.gotPeriod = shortID, period
	return f.resp, f.err
}

type fakeInvoker struct {
	got    analyzer.Trigger
	called bool
	result any
	err    error
}

func (f *fakeInvoker) Invoke(ctx context.Context, t analyzer.Trigger) (any, error) {
	f.got, f.called = t, true
	return f.result, f.err
}

type fakeAlarms struct {
	got     summarizer.Notification
	outcome string
	err     error
}

func (f *fakeAlarms) Handle(ctx context.Context, n summarizer.Notification) (string, error) {
	f.got = n
	return f.outcome, f.err
}

type routerFixture struct {
	latest  *fakeLatest
	stats   *fakeStats
	invoker *fakeInvoker
	alarms  *fakeAlarms
	router  http.Handler
}

func newRouterFixture(token string) *routerFixture {
	logger := testutil.DiscardLogger()
	f := &routerFixture{
		latest:  &fakeLatest{},
		stats:   &fakeStats{},
		invoker: &fakeInvoker{},
		alarms:  &fakeAlarms{outcome: summarizer.AlarmSummary},
	}
	f.router = NewRouter(RouterConfig{
		AI:                 NewAIHandler(f.latest, logger),
		Stats:              NewStatsHandler(f.stats, logger),
		Jobs:               NewJobsHandler(f.invoker, f.alarms, logger),
		Health:             NewHealthHandler(nil),
		Metrics:            http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		JobsToken:          token,
		MaxRequestBodySize: 1024,
		Logger:             logger,
	})
	return f
}

func (f *routerFixture) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_AILatest(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPeriod model.PeriodKey
	}{
		{name: "default period", query: "", wantPeriod: model.Period30Min},
		{name: "explicit period", query: "?periodKey=P%2324H", wantPeriod: model.Period24H},
		{name: "lower case", query: "?periodKey=p%231h", wantPeriod: model.Period1H},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture("")
			f.latest.resp = summarizer.LatestResponse{Found: false, Message: summarizer.MessageNoResult}

			rec := f.do(http.MethodGet, "/ai/latest"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
			if f.latest.got != tt.wantPeriod {
				t.Errorf("period = %q, want %q", f.latest.got, tt.wantPeriod)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}
		})
	}
}

func TestRouter_AILatest_InvalidPeriod(t *testing.T) {
	f := newRouterFixture("")

	rec := f.do(http.MethodGet, "/ai/latest?periodKey=P%2399H", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var got InvalidPeriodResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := InvalidPeriodResponse{Message: "INVALID_periodKey", Allowed: model.AllowedPeriodKeys()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if f.latest.got != "" {
		t.Errorf("reader called with %q for an invalid period", f.latest.got)
	}
}

func TestRouter_AILatest_ReadFailure(t *testing.T) {
	f := newRouterFixture("")
	f.latest.err = errors.New("db down")

	rec := f.do(http.MethodGet, "/ai/latest", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRouter_Stats(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "invalid period", err: service.ErrInvalidPeriod, wantStatus: http.StatusBadRequest, wantCode: "INVALID_PERIOD"},
		{name: "unknown url", err: service.ErrURLNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "store failure", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture("")
			f.stats.err = tt.err
			if tt.err == nil {
				f.stats.resp = &service.StatsResponse{ShortID: "abc123", Period: "24h", PeriodClicks: 4}
			}

			rec := f.do(http.MethodGet, "/stats/abc123?period=24h", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if f.stats.gotID != "abc123" || f.stats.gotPeriod != "24h" {
				t.Errorf("called with (%q, %q)", f.stats.gotID, f.stats.gotPeriod)
			}
			if tt.wantCode != "" {
				if got := decodeError(t, rec).Code; got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}
			var got service.StatsResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.PeriodClicks != 4 {
				t.Errorf("periodClicks = %d, want 4", got.PeriodClicks)
			}
		})
	}
}

func TestRouter_Jobs(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCalled bool
	}{
		{name: "aggregate", body: `{"job":"aggregate_only","periodKey":"P#1H"}`, wantStatus: http.StatusOK, wantCalled: true},
		{name: "empty body", body: "", wantStatus: http.StatusOK, wantCalled: true},
		{name: "malformed", body: `{"job":`, wantStatus: http.StatusBadRequest},
		{name: "invalid trigger", body: `{"periodKey":"P#2H"}`, err: analyzer.ErrInvalidTrigger, wantStatus: http.StatusBadRequest, wantCalled: true},
		{name: "ai disabled", body: `{"job":"ai_only"}`, err: analyzer.ErrSummarizerDisabled, wantStatus: http.StatusServiceUnavailable, wantCalled: true},
		{name: "job failure", body: `{}`, err: errors.New("catalog down"), wantStatus: http.StatusInternalServerError, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture("")
			f.invoker.err = tt.err
			f.invoker.result = map[string]int{"processedUrls": 2}

			rec := f.do(http.MethodPost, "/jobs", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if f.invoker.called != tt.wantCalled {
				t.Errorf("invoked = %v, want %v", f.invoker.called, tt.wantCalled)
			}
		})
	}
}

func TestRouter_Jobs_ForwardsTrigger(t *testing.T) {
	f := newRouterFixture("")

	rec := f.do(http.MethodPost, "/jobs", `{"job":"ai_only","aiPeriodKey":"P#30MIN","sourcePeriodKey":"P#24H"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := analyzer.Trigger{Job: analyzer.TriggerAIOnly, AIPeriodKey: "P#30MIN", SourcePeriodKey: "P#24H"}
	if diff := cmp.Diff(want, f.invoker.got); diff != "" {
		t.Errorf("trigger mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_JobsRequireToken(t *testing.T) {
	f := newRouterFixture("s3cret")

	if rec := f.do(http.MethodPost, "/jobs", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/jobs", `{}`, "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/jobs", `{}`, "Authorization", "Bearer s3cret"); rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/ai/latest", ""); rec.Code != http.StatusOK {
		t.Errorf("read route: status = %d, want 200", rec.Code)
	}
}

func TestRouter_Alarm(t *testing.T) {
	f := newRouterFixture("")

	rec := f.do(http.MethodPost, "/alarms", `{"subject":"ALARM: high 5xx","message":"{\"AlarmName\":\"api-5xx\"}"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got AlarmResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Outcome != summarizer.AlarmSummary {
		t.Errorf("outcome = %q", got.Outcome)
	}
	if f.alarms.got.Subject != "ALARM: high 5xx" {
		t.Errorf("subject = %q", f.alarms.got.Subject)
	}

	f.alarms.err = errors.New("webhook 500")
	if rec := f.do(http.MethodPost, "/alarms", `{"subject":"x","message":"y"}`); rec.Code != http.StatusBadGateway {
		t.Errorf("delivery failure: status = %d, want 502", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/alarms", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed: status = %d, want 400", rec.Code)
	}
}

func TestRouter_AlarmDisabled(t *testing.T) {
	logger := testutil.DiscardLogger()
	router := NewRouter(RouterConfig{
		Jobs:   NewJobsHandler(&fakeInvoker{}, nil, logger),
		Logger: logger,
	})

	req := httptest.NewRequest(http.MethodPost, "/alarms", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	f := newRouterFixture("")

	if rec := f.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/jobs", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /jobs: status = %d, want 405", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/jobs", strings.Repeat("x", 2048)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: status = %d, want 413", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}
