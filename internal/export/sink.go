package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shortify/shortify/internal/model"
)

// ContentTypeNDJSON is the content type of exported files.
const ContentTypeNDJSON = "application/x-ndjson"

// ObjectWriter stores raw objects. statestore.S3Store satisfies it.
type ObjectWriter interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// JSONLSink writes records as JSON Lines objects.
type JSONLSink struct {
	objects ObjectWriter
}

// NewJSONLSink returns a sink over objects.
func NewJSONLSink(objects ObjectWriter) *JSONLSink {
	return &JSONLSink{objects: objects}
}

// Write encodes one record per line, newline terminated.
func (s *JSONLSink) Write(ctx context.Context, key string, records []model.FactRecord) error {
	body, err := EncodeJSONL(records)
	if err != nil {
		return err
	}
	return s.objects.PutObject(ctx, key, body, ContentTypeNDJSON)
}

// EncodeJSONL renders records as JSON Lines.
func EncodeJSONL(records []model.FactRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// MemorySink keeps written batches in memory. Used for local runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	batches map[string][]model.FactRecord
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{batches: make(map[string][]model.FactRecord)}
}

// Write stores a copy of records under key.
func (m *MemorySink) Write(_ context.Context, key string, records []model.FactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[key] = append([]model.FactRecord(nil), records...)
	return nil
}

// Batches returns a copy of every written batch.
func (m *MemorySink) Batches() map[string][]model.FactRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.FactRecord, len(m.batches))
	for k, v := range m.batches {
		out[k] = v
	}
	return out
}
