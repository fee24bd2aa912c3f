package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"
	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/summarizer"
	"github.com/shortify/shortify/internal/testutil"
)

type fakeInvoker struct {
	got    analyzer.Trigger
	called bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, t analyzer.Trigger) (any, error) {
	f.got, f.called = t, true
	return map[string]string{"job": t.Job}, nil
}

type fakeAlarms struct {
	got  []summarizer.Notification
	fail bool
}

func (f *fakeAlarms) Handle(ctx context.Context, n summarizer.Notification) (string, error) {
	f.got = append(f.got, n)
	if f.fail {
		return summarizer.AlarmSummary, errors.New("webhook 500")
	}
	return summarizer.AlarmSummary, nil
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header string
}

func echoRouter(got *recordedRequest) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*got = recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(b),
			Header: r.Header.Get("Authorization"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "a=1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{name: "http api", raw: `{"rawPath":"/ai/latest","requestContext":{"http":{"method":"GET"}}}`, want: KindHTTP},
		{name: "sns", raw: `{"Records":[{"EventSource":"aws:sns","Sns":{"Message":"x"}}]}`, want: KindSNS},
		{name: "empty records", raw: `{"Records":[]}`, want: KindSNS},
		{name: "trigger", raw: `{"job":"ai_only"}`, want: KindTrigger},
		{name: "request context without http", raw: `{"requestContext":{}}`, want: KindTrigger},
		{name: "empty object", raw: `{}`, want: KindTrigger},
		{name: "not an object", raw: `"hello"`, want: KindTrigger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripStage(t *testing.T) {
	tests := []struct {
		path, stage, want string
	}{
		{"/prod/ai/latest", "prod", "/ai/latest"},
		{"/prod", "prod", "/"},
		{"/production/x", "prod", "/production/x"},
		{"/ai/latest", "$default", "/ai/latest"},
		{"/ai/latest", "", "/ai/latest"},
		{"", "prod", "/"},
	}
	for _, tt := range tests {
		if got := StripStage(tt.path, tt.stage); got != tt.want {
			t.Errorf("StripStage(%q, %q) = %q, want %q", tt.path, tt.stage, got, tt.want)
		}
	}
}

func TestDispatcher_HTTPEvent(t *testing.T) {
	var got recordedRequest
	d := NewDispatcher(echoRouter(&got), &fakeInvoker{}, nil, testutil.DiscardLogger())

	raw := `{
		"rawPath": "/prod/jobs",
		"rawQueryString": "periodKey=P%2330MIN",
		"headers": {"authorization": "Bearer t"},
		"body": "eyJqb2IiOiJhaV9vbmx5In0=",
		"isBase64Encoded": true,
		"requestContext": {"stage": "prod", "http": {"method": "POST", "sourceIp": "10.0.0.1"}}
	}`
	out, err := d.Handle(context.Background(), json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	want := recordedRequest{
		Method: http.MethodPost,
		Path:   "/jobs",
		Query:  "periodKey=P%2330MIN",
		Body:   `{"job":"ai_only"}`,
		Header: "Bearer t",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forwarded request mismatch (-want +got):\n%s", diff)
	}

	resp, ok := out.(events.APIGatewayV2HTTPResponse)
	if !ok {
		t.Fatalf("Handle() returned %T", out)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if resp.Body != `{"ok":true}` || resp.IsBase64Encoded {
		t.Errorf("body = %q (base64=%v)", resp.Body, resp.IsBase64Encoded)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", resp.Headers["Content-Type"])
	}
	if diff := cmp.Diff([]string{"a=1"}, resp.Cookies); diff != "" {
		t.Errorf("cookies mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_SNS(t *testing.T) {
	alarms := &fakeAlarms{}
	d := NewDispatcher(http.NotFoundHandler(), &fakeInvoker{}, alarms, testutil.DiscardLogger())

	raw := `{"Records":[
		{"EventSource":"aws:sns","Sns":{"MessageId":"m1","Subject":"ALARM","Message":"{\"AlarmName\":\"a\"}"}},
		{"EventSource":"aws:sqs","Sns":{"MessageId":"m2"}},
		{"EventSource":"aws:sns","Sns":{"MessageId":"m3","Subject":"hello","Message":"plain"}}
	]}`
	out, err := d.Handle(context.Background(), json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	want := SNSResult{Processed: 2, Outcomes: []string{summarizer.AlarmSummary, summarizer.AlarmSummary}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	wantSeen := []summarizer.Notification{
		{Subject: "ALARM", Message: `{"AlarmName":"a"}`},
		{Subject: "hello", Message: "plain"},
	}
	if diff := cmp.Diff(wantSeen, alarms.got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_SNSFailureStopsBatch(t *testing.T) {
	alarms := &fakeAlarms{fail: true}
	d := NewDispatcher(http.NotFoundHandler(), &fakeInvoker{}, alarms, testutil.DiscardLogger())

	raw := `{"Records":[
		{"EventSource":"aws:sns","Sns":{"MessageId":"m1","Message":"a"}},
		{"EventSource":"aws:sns","Sns":{"MessageId":"m2","Message":"b"}}
	]}`
	if _, err := d.Handle(context.Background(), json.RawMessage(raw)); err == nil {
		t.Fatal("Handle() error = nil, want delivery failure")
	}
	if len(alarms.got) != 1 {
		t.Errorf("handled %d records, want 1", len(alarms.got))
	}
}

func TestDispatcher_SNSWithoutAlarms(t *testing.T) {
	d := NewDispatcher(http.NotFoundHandler(), &fakeInvoker{}, nil, testutil.DiscardLogger())
	_, err := d.Handle(context.Background(), json.RawMessage(`{"Records":[]}`))
	if !errors.Is(err, ErrAlarmsDisabled) {
		t.Errorf("Handle() error = %v, want ErrAlarmsDisabled", err)
	}
}

func TestDispatcher_Trigger(t *testing.T) {
	inv := &fakeInvoker{}
	d := NewDispatcher(http.NotFoundHandler(), inv, nil, testutil.DiscardLogger())

	out, err := d.Handle(context.Background(), json.RawMessage(`{"job":"ai_only","aiPeriodKey":"P#5MIN"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := analyzer.Trigger{Job: analyzer.TriggerAIOnly, AIPeriodKey: "P#5MIN"}
	if diff := cmp.Diff(want, inv.got); diff != "" {
		t.Errorf("trigger mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"job": "ai_only"}, out); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	inv.called = false
	if _, err := d.Handle(context.Background(), json.RawMessage(`{"job":`)); !errors.Is(err, analyzer.ErrInvalidTrigger) {
		t.Errorf("malformed trigger error = %v, want ErrInvalidTrigger", err)
	}
	if inv.called {
		t.Error("invoker called for a malformed trigger")
	}
}
