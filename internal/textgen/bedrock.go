package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Inference defaults for summary prompts.
const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
)

// InvokeAPI is the subset of the Bedrock runtime client used here.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock invokes messages-style models through InvokeModel.
type Bedrock struct {
	client InvokeAPI
}

// NewBedrock returns a Bedrock generator over client.
func NewBedrock(client InvokeAPI) *Bedrock {
	return &Bedrock{client: client}
}

type messageContent struct {
	Text string `json:"text"`
}

type message struct {
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type inferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type invokeRequest struct {
	Messages        []message       `json:"messages"`
	InferenceConfig inferenceConfig `json:"inferenceConfig"`
}

// Generate sends prompt as a single user message and returns the model text.
func (b *Bedrock) Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(invokeRequest{
		Messages: []message{{Role: "user", Content: []messageContent{{Text: prompt}}}},
		InferenceConfig: inferenceConfig{
			MaxTokens:   maxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", model, err)
	}

	text := ExtractText(out.Body)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ExtractText pulls the generated text out of a model response body. It
// understands the messages shape (output.message.content[].text), the
// results[].outputText shape and a handful of flat keys; anything else is
// returned verbatim.
func ExtractText(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}

	var output struct {
		Message struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	}
	if raw, ok := payload["output"]; ok && json.Unmarshal(raw, &output) == nil {
		for _, c := range output.Message.Content {
			if c.Text != "" {
				return c.Text
			}
		}
	}

	var results []struct {
		OutputText string `json:"outputText"`
		Text       string `json:"text"`
	}
	if raw, ok := payload["results"]; ok && json.Unmarshal(raw, &results) == nil && len(results) > 0 {
		if results[0].OutputText != "" {
			return results[0].OutputText
		}
		if results[0].Text != "" {
			return results[0].Text
		}
	}

	for _, key := range []string{"outputText", "completion", "generatedText", "text"} {
		var s string
		if raw, ok := payload[key]; ok && json.Unmarshal(raw, &s) == nil {
			return s
		}
	}

	return string(body)
}
