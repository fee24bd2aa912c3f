package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/metrics"
	"github.com/shortify/shortify/internal/textgen"
)

// DefaultAlarmMaxTokens bounds the alarm summary length.
const DefaultAlarmMaxTokens = 300

// Alarm handling outcomes.
const (
	AlarmPassThrough = "passthrough"
	AlarmIgnored     = "ignored"
	AlarmRecovery    = "recovery"
	AlarmSummary     = "summary"
	AlarmFallback    = "fallback"
)

// Poster delivers a chat message, returning an error when it was not accepted.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// Notification is one message published to the alarm topic.
type Notification struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// AlarmOptions configures an AlarmSummarizer.
type AlarmOptions struct {
	Model        string
	MaxTokens    int
	AIOnStates   []string // states that get a generated summary
	SendOKSimple bool     // post a plain recovery line for OK
}

// AlarmSummarizer turns CloudWatch alarm notifications into short chat summaries.
type AlarmSummarizer struct {
	gen     textgen.Generator
	poster  Poster
	opts    AlarmOptions
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAlarmSummarizer returns an AlarmSummarizer.
func NewAlarmSummarizer(gen textgen.Generator, poster Poster, opts AlarmOptions, recorder metrics.Recorder, logger *slog.Logger) *AlarmSummarizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultAlarmMaxTokens
	}
	if opts.Model == "" {
		opts.Model = DefaultInsightModel
	}
	if len(opts.AIOnStates) == 0 {
		opts.AIOnStates = []string{"ALARM"}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlarmSummarizer{
		gen:     gen,
		poster:  poster,
		opts:    opts,
		metrics: recorder,
		logger:  logger.With("component", "summarizer.alarm"),
	}
}

type alarmMessage struct {
	AlarmName       string `json:"AlarmName"`
	NewStateValue   string `json:"NewStateValue"`
	NewStateReason  string `json:"NewStateReason"`
	Region          string `json:"Region"`
	StateChangeTime string `json:"StateChangeTime"`
}

// Handle posts the right text for n and reports what it did. Only delivery
// failures are returned.
func (a *AlarmSummarizer) Handle(ctx context.Context, n Notification) (string, error) {
	var raw map[string]any
	_ = json.Unmarshal([]byte(n.Message), &raw)
	if _, ok := raw["AlarmName"]; !ok {
		subject := n.Subject
		if subject == "" {
			subject = "(no-subject)"
		}
		text := "ℹ️ *AI Summary Channel (pass-through)*\n" +
			"• Subject: " + subject + "\n" +
			"• Message: " + trimText(n.Message, 1200)
		return AlarmPassThrough, a.post(ctx, text)
	}

	var msg alarmMessage
	_ = json.Unmarshal([]byte(n.Message), &msg)
	name := orDefault(msg.AlarmName, "(unknown)")
	state := orDefault(msg.NewStateValue, "(unknown)")
	changedAt := displayAlarmTime(msg.StateChangeTime)
	header := fmt.Sprintf("• Alarm: `%s`\n• State: *%s*\n• Region: `%s`\n• Time: `%s`\n", name, state, msg.Region, changedAt)

	if !a.summarizes(state) {
		if a.opts.SendOKSimple && state == "OK" {
			text := "✅ *CloudWatch Alarm Recovery (AI 채널)*\n" + header +
				"• Reason: " + trimText(msg.NewStateReason, 1200)
			return AlarmRecovery, a.post(ctx, text)
		}
		return AlarmIgnored, nil
	}

	prompt := AlarmPrompt(name, state, msg.Region, changedAt, n.Message)
	summary, err := a.gen.Generate(ctx, a.opts.Model, prompt, a.opts.MaxTokens)
	if err != nil {
		a.metrics.IncAIInvocation("alarm", metrics.StatusFailed)
		a.logger.Error("alarm summary failed", "alarm", name, "error", err)
		text := "⚠️ *AI Alarm Summary (fallback)*\n" + header +
			"• AI 요약 실패: `" + trimText(err.Error(), 300) + "`\n" +
			"• Reason: " + trimText(msg.NewStateReason, 1200)
		return AlarmFallback, a.post(ctx, text)
	}
	a.metrics.IncAIInvocation("alarm", metrics.StatusSuccess)

	text := "🤖 *AI Alarm Summary*\n" + header + trimText(NormalizeSummary(summary), 2500)
	return AlarmSummary, a.post(ctx, text)
}

func (a *AlarmSummarizer) summarizes(state string) bool {
	for _, s := range a.opts.AIOnStates {
		if s == state {
			return true
		}
	}
	return false
}

func (a *AlarmSummarizer) post(ctx context.Context, text string) error {
	if err := a.poster.Post(ctx, text); err != nil {
		return fmt.Errorf("post alarm summary: %w", err)
	}
	return nil
}

// AlarmPrompt asks for a four-line Korean operations summary.
func AlarmPrompt(name, state, region, changedAt, rawMessage string) string {
	var b strings.Builder
	b.WriteString("너는 AWS 운영 알림 요약 도우미다.\n")
	b.WriteString("CloudWatch Alarm 이벤트를 보고 Slack에 보낼 한국어 운영 요약을 작성하라.\n\n")
	b.WriteString("규칙:\n")
	b.WriteString("- 한국어로 작성\n")
	b.WriteString("- 추정 내용은 반드시 '(추정)' 표시\n")
	b.WriteString("- 과장 금지, 입력 정보 범위 내에서만 요약\n")
	b.WriteString("- 최대 8줄 이내\n")
	b.WriteString("- 불필요한 서론/인사 금지\n")
	b.WriteString("- 각 줄은 반드시 '1) ', '2) ', '3) ', '4) '로 시작\n")
	b.WriteString("- 출력 형식 고정(각 줄 시작 문자까지 반드시 동일하게):\n")
	b.WriteString("1) 요약: 1~2줄\n")
	b.WriteString("2) 영향: 1~2줄\n")
	b.WriteString("3) 원인: 1~2줄 (추정이면 (추정)표시)\n")
	b.WriteString("4) 확인: 확인 항목 2~3개를 '/'로 구분 (예: API Gateway 로그 / Lambda 로그 / 최근 배포 변경사항)\n")
	b.WriteString("- 문장 끝에 '...' 사용 금지\n\n")
	b.WriteString("입력:\n")
	b.WriteString("- AlarmName: " + name + "\n")
	b.WriteString("- State: " + state + "\n")
	b.WriteString("- Region: " + region + "\n")
	b.WriteString("- Time(KST): " + changedAt + "\n\n")
	b.WriteString("원본 이벤트(JSON 일부):\n")
	b.WriteString(trimText(rawMessage, 3000))
	return b.String()
}

var defaultSummaryLines = [4]string{
	"1) 요약: CloudWatch 알람이 발생했습니다.",
	"2) 영향: 서비스 영향 여부 확인이 필요합니다.",
	"3) 원인: 메트릭 임계치 초과로 추정됩니다. (추정)",
	"4) 확인: API Gateway 로그 / Lambda 로그 / 최근 배포 변경사항",
}

// NormalizeSummary forces generated text into exactly four numbered lines,
// numbering bare lines and filling missing ones with defaults.
func NormalizeSummary(summary string) string {
	var lines []string
	for _, line := range strings.Split(summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return "1) 요약: 요약 생성 실패\n" +
			"2) 영향: 확인 필요\n" +
			"3) 원인: 확인 필요 (추정)\n" +
			"4) 확인: API Gateway 로그 / Lambda 로그 / 최근 배포 변경사항"
	}

	out := make([]string, 0, 4)
	for i, line := range lines {
		if i == 4 {
			break
		}
		prefix := fmt.Sprintf("%d)", i+1)
		if !strings.HasPrefix(line, prefix) {
			line = prefix + " " + line
		}
		out = append(out, line)
	}
	for len(out) < 4 {
		out = append(out, defaultSummaryLines[len(out)])
	}
	return strings.Join(out, "\n")
}

var alarmTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

func displayAlarmTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	for _, layout := range alarmTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return classify.DisplayTime(t)
		}
	}
	return s
}

func trimText(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "...(truncated)"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
