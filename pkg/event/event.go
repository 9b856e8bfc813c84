// Package event decodes the scheduled event that triggers the state mover.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalid wraps every decoding and validation failure.
var ErrInvalid = errors.New("invalid scheduled event")

const schemaJSON = `{
	"type": "object",
	"properties": {
		"id":     {"type": "string"},
		"source": {"type": "string"},
		"time":   {"type": "string"},
		"detail": {
			"type": "object",
			"properties": {
				"jobRunId": {"type": "string", "minLength": 1},
				"state":    {"type": "string", "minLength": 1}
			},
			"anyOf": [
				{"maxProperties": 0},
				{"required": ["jobRunId", "state"]}
			]
		}
	}
}`

var schema = jsonschema.MustCompileString("scheduled-event.json", schemaJSON)

// Detail reports the completion of a batch job run.
type Detail struct {
	JobRunID string `json:"jobRunId"`
	State    string `json:"state"`
}

// Scheduled is the trigger payload. Detail is nil for a plain schedule tick,
// including schedulers that always send an empty detail object.
type Scheduled struct {
	ID     string  `json:"id,omitempty"`
	Source string  `json:"source,omitempty"`
	Time   string  `json:"time,omitempty"`
	Detail *Detail `json:"detail,omitempty"`
}

// Decode reads and validates one event. An empty body is a tick.
func Decode(r io.Reader) (Scheduled, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Scheduled{}, fmt.Errorf("%w: read body: %v", ErrInvalid, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Scheduled{}, nil
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Scheduled{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Scheduled{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var ev Scheduled
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Scheduled{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if ev.Detail != nil && *ev.Detail == (Detail{}) {
		ev.Detail = nil
	}
	return ev, nil
}
