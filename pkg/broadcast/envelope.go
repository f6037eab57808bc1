package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/multitab/pkg/statetree"
)

// Envelope is the persisted and broadcast unit.
//
// Single-blob keys hold {"id": ..., "state": ...}; namespace keys hold
// {"id": ..., "storeState": ...}.
type Envelope struct {
	ID         OriginTag       `json:"id"`
	State      statetree.Value `json:"-"`
	namespaced bool
}

type wireEnvelope struct {
	ID         OriginTag       `json:"id"`
	State      json.RawMessage `json:"state,omitempty"`
	StoreState json.RawMessage `json:"storeState,omitempty"`
}

// MarshalJSON writes the field name matching the envelope's shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	state, err := statetree.Encode(e.State)
	if err != nil {
		return nil, err
	}
	w := wireEnvelope{ID: e.ID}
	if e.namespaced {
		w.StoreState = state
	} else {
		w.State = state
	}
	return json.Marshal(w)
}

// encodeEnvelope serializes state tagged with origin.
func encodeEnvelope(origin OriginTag, state statetree.Value, namespaced bool) (string, error) {
	data, err := json.Marshal(Envelope{ID: origin, State: state, namespaced: namespaced})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(data), nil
}

// UnmarshalJSON reads either shape. An envelope carrying storeState is a
// namespace envelope; otherwise the body comes from state.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	env, err := w.envelope(len(w.StoreState) > 0)
	if err != nil {
		return err
	}
	*e = env
	return nil
}

// decodeEnvelope parses a stored envelope. A namespace envelope without
// storeState falls back to state; a single-blob envelope only reads state.
func decodeEnvelope(raw string, namespaced bool) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return w.envelope(namespaced)
}

func (w wireEnvelope) envelope(namespaced bool) (Envelope, error) {
	body := w.State
	if namespaced && len(w.StoreState) > 0 {
		body = w.StoreState
	}

	env := Envelope{ID: w.ID, namespaced: namespaced}
	if len(body) == 0 {
		return env, nil
	}
	state, err := statetree.Decode(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope state: %w", err)
	}
	env.State = state
	return env, nil
}
