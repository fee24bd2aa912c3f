// Package invoke dispatches serverless invocation payloads: HTTP API events
// go to the router, SNS deliveries go to the alarm summarizer and anything
// else is a job trigger.
package invoke

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/summarizer"
)

// SNSEventSource tags records delivered by SNS.
const SNSEventSource = "aws:sns"

// ErrAlarmsDisabled is returned for SNS deliveries when no alarm handler is wired.
var ErrAlarmsDisabled = errors.New("alarm summaries disabled")

// Invoker runs one trigger.
type Invoker interface {
	Invoke(ctx context.Context, t analyzer.Trigger) (any, error)
}

// AlarmHandler turns one alarm notification into a chat post.
type AlarmHandler interface {
	Handle(ctx context.Context, n summarizer.Notification) (string, error)
}

// Kind names the payload shape a Dispatcher recognised.
type Kind string

// Payload kinds.
const (
	KindHTTP    Kind = "http"
	KindSNS     Kind = "sns"
	KindTrigger Kind = "trigger"
)

// Detect classifies a raw payload by its top-level keys.
func Detect(raw json.RawMessage) Kind {
	var probe struct {
		RequestContext *struct {
			HTTP *struct {
				Method string `json:"method"`
			} `json:"http"`
		} `json:"requestContext"`
		Records []struct {
			EventSource string `json:"EventSource"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return KindTrigger
	}
	if probe.RequestContext != nil && probe.RequestContext.HTTP != nil && probe.RequestContext.HTTP.Method != "" {
		return KindHTTP
	}
	if probe.Records != nil {
		return KindSNS
	}
	return KindTrigger
}

// Dispatcher is the single entry point of the serverless deployment.
type Dispatcher struct {
	router  http.Handler
	invoker Invoker
	alarms  AlarmHandler
	logger  *slog.Logger
}

// NewDispatcher returns a Dispatcher. alarms may be nil.
func NewDispatcher(router http.Handler, invoker Invoker, alarms AlarmHandler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		router:  router,
		invoker: invoker,
		alarms:  alarms,
		logger:  logger.With("component", "invoke"),
	}
}

// Handle processes one invocation payload.
func (d *Dispatcher) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	switch kind := Detect(raw); kind {
	case KindHTTP:
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode http event: %w", err)
		}
		return d.ServeHTTPEvent(ctx, req)
	case KindSNS:
		var ev events.SNSEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode sns event: %w", err)
		}
		return d.HandleSNS(ctx, ev)
	default:
		t, err := analyzer.ParseTrigger(raw)
		if err != nil {
			return nil, err
		}
		d.logger.Info("trigger received", "job", t.Job, "period_key", t.PeriodKey, "ai_period_key", t.AIPeriodKey)
		return d.invoker.Invoke(ctx, t)
	}
}

// ServeHTTPEvent replays an HTTP API event through the router. The stage
// prefix is stripped so "/prod/ai/latest" routes as "/ai/latest".
func (d *Dispatcher) ServeHTTPEvent(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := StripStage(ev.RawPath, ev.RequestContext.Stage)

	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	target := &url.URL{Path: path, RawQuery: ev.RawQueryString}
	req, err := http.NewRequestWithContext(ctx, ev.RequestContext.HTTP.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	req.RemoteAddr = ev.RequestContext.HTTP.SourceIP
	req.RequestURI = target.RequestURI()

	rw := newResponseBuffer()
	d.router.ServeHTTP(rw, req)
	return rw.response(), nil
}

// StripStage removes a leading "/<stage>" segment from path.
func StripStage(path, stage string) string {
	if path == "" {
		path = "/"
	}
	if stage == "" || stage == "$default" {
		return path
	}
	prefix := "/" + stage
	switch {
	case path == prefix:
		return "/"
	case strings.HasPrefix(path, prefix+"/"):
		return path[len(prefix):]
	}
	return path
}

// SNSResult reports what happened to each delivered record.
type SNSResult struct {
	Processed int      `json:"processed"`
	Outcomes  []string `json:"outcomes"`
}

// HandleSNS summarizes every SNS record in order. The first delivery failure
// stops the batch so the platform retries it.
func (d *Dispatcher) HandleSNS(ctx context.Context, ev events.SNSEvent) (SNSResult, error) {
	res := SNSResult{Outcomes: []string{}}
	if d.alarms == nil {
		return res, ErrAlarmsDisabled
	}
	for _, rec := range ev.Records {
		if rec.EventSource != SNSEventSource {
			continue
		}
		outcome, err := d.alarms.Handle(ctx, summarizer.Notification{
			Subject: rec.SNS.Subject,
			Message: rec.SNS.Message,
		})
		if err != nil {
			return res, fmt.Errorf("sns message %s: %w", rec.SNS.MessageID, err)
		}
		res.Processed++
		res.Outcomes = append(res.Outcomes, outcome)
	}
	d.logger.Info("sns batch handled", "records", len(ev.Records), "processed", res.Processed)
	return res, nil
}
