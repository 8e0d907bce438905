package outbox

import (
	"encoding/json"
	"strings"
	"time"

	appoutbox "cspace/internal/app/outbox"
)

// CloudEvent is the structured-mode envelope written to the broker.
type CloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	TraceParent     string    `json:"traceparent,omitempty"`
	Data            any       `json:"data"`
}

// DecodeCloudEvent turns a broker payload back into the record the outbox
// stored, so in-process sinks see the same shape either way.
func DecodeCloudEvent(payload []byte) (appoutbox.EventRecord, error) {
	var env struct {
		ID          string          `json:"id"`
		Type        string          `json:"type"`
		Subject     string          `json:"subject"`
		Time        time.Time       `json:"time"`
		TraceParent string          `json:"traceparent"`
		Data        json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return appoutbox.EventRecord{}, err
	}
	headers := map[string]string{}
	if env.TraceParent != "" {
		headers["traceparent"] = env.TraceParent
	}
	return appoutbox.EventRecord{
		ID:         env.ID,
		Name:       strings.TrimSuffix(env.Type, ".v1"),
		Payload:    env.Data,
		OccurredAt: env.Time,
		Aggregate:  env.Subject,
		Headers:    headers,
	}, nil
}
