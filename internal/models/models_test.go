package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitEncoding(t *testing.T) {
	path := "/abc"
	v := Visit{
		Timestamp: Timestamp{time.UnixMilli(1700000000000)},
		Identity:  "desk-1",
		URI:       Resource{Protocol: "http", Hostname: "example.com", Path: &path},
	}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"timestamp": "2023-11-14T22:13:20.000Z",
		"identity": "desk-1",
		"uri": {"protocol": "http", "hostname": "example.com", "path": "/abc"}
	}`, string(data))
}

func TestTimestampDecodesRFC3339(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2023-11-14T23:13:20.5+01:00"`), &ts))
	assert.True(t, ts.Equal(time.UnixMilli(1700000000500)))

	assert.Error(t, json.Unmarshal([]byte(`1700000000000`), &ts))
}

func TestNavigationEventAcceptsFractionalTimestamp(t *testing.T) {
	var ev NavigationEvent
	require.NoError(t, json.Unmarshal([]byte(`{"url":"http://a.test/","timeStamp":1700000000123.456}`), &ev))
	assert.Equal(t, "http://a.test/", ev.URL)
	assert.Equal(t, int64(1700000000123), ev.TimestampMillis)
}

func TestEmptyResponseEncodesAsEmptyObject(t *testing.T) {
	data, err := json.Marshal(Response{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	data, err = json.Marshal(Response{Result: "Connected"})
	require.NoError(t, err)
	assert.Equal(t, `{"result":"Connected"}`, string(data))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "Browsing/desk-1", Topic("desk-1"))
}
