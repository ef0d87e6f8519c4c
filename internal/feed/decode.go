package feed

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var ErrInvalidMessage = errors.New("feed: invalid message")

// Decode parses one feed message. timestamp may be an RFC 3339 string or
// epoch milliseconds; uri may be a URI string or a {protocol, hostname, port,
// path} object. Missing fields stay zero.
func Decode(data []byte) (Item, error) {
	if !gjson.ValidBytes(data) {
		return Item{}, fmt.Errorf("%w: not JSON", ErrInvalidMessage)
	}
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return Item{}, fmt.Errorf("%w: not an object", ErrInvalidMessage)
	}

	var item Item
	item.Identity = msg.Get("identity").String()

	ts, err := decodeTimestamp(msg.Get("timestamp"))
	if err != nil {
		return Item{}, err
	}
	item.Timestamp = ts

	uri, err := decodeURI(msg.Get("uri"))
	if err != nil {
		return Item{}, err
	}
	item.URI = uri
	return item, nil
}

func decodeTimestamp(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Null:
		return time.Time{}, nil
	case gjson.Number:
		return time.UnixMilli(v.Int()), nil
	case gjson.String:
		ts, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidMessage, err)
		}
		return ts, nil
	default:
		return time.Time{}, fmt.Errorf("%w: timestamp has type %s", ErrInvalidMessage, v.Type)
	}
}

func decodeURI(v gjson.Result) (*url.URL, error) {
	switch {
	case v.Type == gjson.Null:
		return nil, nil
	case v.Type == gjson.String:
		u, err := url.Parse(v.Str)
		if err != nil {
			return nil, fmt.Errorf("%w: uri: %v", ErrInvalidMessage, err)
		}
		return u, nil
	case v.IsObject():
		hostname := v.Get("hostname").String()
		u := &url.URL{Scheme: v.Get("protocol").String(), Host: hostname}
		if port := v.Get("port"); port.Exists() && port.String() != "" {
			u.Host = net.JoinHostPort(hostname, port.String())
		} else if strings.Contains(hostname, ":") {
			u.Host = "[" + hostname + "]"
		}
		// The path arrives already escaped.
		if raw := v.Get("path").String(); raw != "" {
			p, err := url.PathUnescape(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: uri path: %v", ErrInvalidMessage, err)
			}
			u.Path, u.RawPath = p, raw
		}
		return u, nil
	default:
		return nil, fmt.Errorf("%w: uri has type %s", ErrInvalidMessage, v.Type)
	}
}
