package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TopicPrefix is prepended to the identity to form the publish topic.
const TopicPrefix = "Browsing/"

// TimestampLayout matches the millisecond ISO-8601 form browsers produce.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func Topic(identity string) string {
	return TopicPrefix + identity
}

// Visit describes an access to a web resource.
type Visit struct {
	Timestamp Timestamp `json:"timestamp"` // Time the resource was accessed.
	Identity  string    `json:"identity"`  // Identity of the publishing installation.
	URI       Resource  `json:"uri"`       // Location of the resource.
}

// Resource is a URI with credentials, query and fragment removed.
type Resource struct {
	Protocol string  `json:"protocol"`
	Hostname string  `json:"hostname"`
	Port     *string `json:"port,omitempty"`
	Path     *string `json:"path,omitempty"`
}

// Timestamp encodes as UTC with exactly three fractional digits and decodes
// any RFC 3339 time.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
