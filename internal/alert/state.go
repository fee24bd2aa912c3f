// Package alert decides when to notify about suspicious clicks and keeps the
// per-identifier watermark that suppresses repeated notifications.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/statestore"
)

// DefaultStateKey is where the 1H watermark map lives.
const DefaultStateKey = "analytics/state/alert_last_suspicious_by_sid_p1h.json"

// StateStore loads and saves the whole watermark map.
type StateStore interface {
	Load(ctx context.Context) (model.AlertState, error)
	Save(ctx context.Context, state model.AlertState) error
}

// StateFile stores the watermark map as one JSON document.
type StateFile struct {
	store statestore.Store
	key   string
}

// NewStateFile returns a StateFile at key (DefaultStateKey when empty).
func NewStateFile(store statestore.Store, key string) *StateFile {
	if key == "" {
		key = DefaultStateKey
	}
	return &StateFile{store: store, key: key}
}

// Load returns the stored map. A missing document is an empty map.
// Numbers and numeric strings are accepted, fractions truncated; anything
// else is dropped.
func (f *StateFile) Load(ctx context.Context) (model.AlertState, error) {
	raw := map[string]json.RawMessage{}
	if err := f.store.GetJSON(ctx, f.key, &raw); err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return model.AlertState{}, nil
		}
		return nil, fmt.Errorf("load alert state: %w", err)
	}

	state := make(model.AlertState, len(raw))
	for id, value := range raw {
		if n, ok := watermark(value); ok {
			state[id] = n
		}
	}
	return state, nil
}

func watermark(value json.RawMessage) (int, bool) {
	var n float64
	if err := json.Unmarshal(value, &n); err == nil {
		return int(math.Trunc(n)), true
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(math.Trunc(f)), true
	}
	return 0, false
}

// Save overwrites the stored map.
func (f *StateFile) Save(ctx context.Context, state model.AlertState) error {
	if state == nil {
		state = model.AlertState{}
	}
	if err := f.store.PutJSON(ctx, f.key, state); err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}
