package mona

import (
	"strings"

	"github.com/google/uuid"
)

// SingleMessage is one exported record: a free-form message attached to a
// context instance of a context class.
type SingleMessage struct {
	// Message carries the monitored fields. Field names starting with
	// MONA_ are reserved and renamed on the wire.
	Message map[string]any `json:"message"`

	// ContextClass groups context instances of the same shape, e.g.
	// "LOAN_APPLICATION".
	ContextClass string `json:"contextClass"`

	// ContextID identifies the context instance. Messages sharing an id are
	// merged into one instance server side. Empty means a generated id,
	// making the message its own instance.
	ContextID string `json:"contextId"`

	// ExportTimestamp is the message's epoch seconds. Zero means "now",
	// assigned by the backend.
	ExportTimestamp int64 `json:"exportTimestamp,omitempty"`
}

// wireMessage is the export payload shape expected by the rest-api, which
// still names the context class "arcClass".
// TODO: send contextClass once the rest-api accepts it.
type wireMessage struct {
	Message         map[string]any `json:"message"`
	ArcClass        string         `json:"arcClass"`
	ContextID       string         `json:"contextId"`
	ExportTimestamp int64          `json:"exportTimestamp,omitempty"`
}

// wire normalizes a message for export: reserved MONA_ field names are
// renamed to MY_MONA_, and an empty context id gets a random UUID so the
// message forms its own context instance.
func (m SingleMessage) wire() wireMessage {
	w := wireMessage{
		Message:         sanitizeFields(m.Message),
		ArcClass:        m.ContextClass,
		ContextID:       m.ContextID,
		ExportTimestamp: m.ExportTimestamp,
	}
	if w.ContextID == "" {
		w.ContextID = uuid.NewString()
	}
	return w
}

// sanitizeFields renames reserved MONA_-prefixed field names to MY_MONA_.
// The input map is never mutated.
func sanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if strings.HasPrefix(key, "MONA_") {
			key = "MY_" + key
		}
		out[key] = value
	}
	return out
}
