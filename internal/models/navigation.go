package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// NavigationEvent is one completed top-level navigation reported by a source.
// The JSON shape follows the browser's webNavigation details, whose timeStamp
// is a fractional millisecond count.
type NavigationEvent struct {
	URL             string `json:"url"`
	TimestampMillis int64  `json:"timeStamp"`
}

func (e NavigationEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMillis)
}

func (e *NavigationEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL       string  `json:"url"`
		TimeStamp float64 `json:"timeStamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if math.IsNaN(raw.TimeStamp) || math.IsInf(raw.TimeStamp, 0) {
		return fmt.Errorf("invalid timeStamp %v", raw.TimeStamp)
	}
	e.URL = raw.URL
	e.TimestampMillis = int64(raw.TimeStamp)
	return nil
}
