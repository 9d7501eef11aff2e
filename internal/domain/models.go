package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// PendingText is served until the first reading has been analyzed.
	PendingText = "Aún no se han recibido datos del ESP32. Esperando primera medición..."
	// FailureText replaces the analysis after a failed provider call.
	FailureText = "Error al procesar los datos. Revisa la consola del servidor."
)

// Sources a reading can arrive from.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// ErrInvalidReading is returned for any payload that is not a JSON object.
var ErrInvalidReading = errors.New("reading must be a JSON object")

// Reading is one measurement batch as sent by the device. The payload is kept
// opaque; only its shape (a JSON object) is checked.
type Reading struct {
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Source     string          `db:"source" json:"source"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}

// ParseReading copies payload and checks that it holds a single JSON object.
func ParseReading(payload []byte, source string, receivedAt time.Time) (Reading, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Reading{}, ErrInvalidReading
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	return Reading{
		Payload:    append(json.RawMessage(nil), trimmed...),
		Source:     source,
		ReceivedAt: receivedAt,
	}, nil
}

// String returns the raw payload.
func (r Reading) String() string { return string(r.Payload) }

// State tells whether Result holds an analysis, a failure or nothing yet.
type State string

const (
	StatePending State = "pending"
	StateOK      State = "ok"
	StateFailed  State = "failed"
)

// Result is the analysis currently published to viewers.
type Result struct {
	Text      string    `json:"analisis"`
	State     State     `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// InitialResult is the pending placeholder served before the first ingest.
func InitialResult() Result {
	return Result{Text: PendingText, State: StatePending}
}
