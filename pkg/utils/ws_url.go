package utils

import (
	"strings"
)

// BuildWebSocketURL maps an http(s) base URL onto ws(s) and appends path.
// Base URLs that already use ws or wss are kept, and a bare host:port is
// treated as ws.
func BuildWebSocketURL(baseURL, path string) string {
	wsURL := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	case strings.HasPrefix(wsURL, "ws://"), strings.HasPrefix(wsURL, "wss://"):
	default:
		wsURL = "ws://" + wsURL
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return wsURL + path
}
