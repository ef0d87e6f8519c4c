// Package navigation turns raw navigation URLs into the resource descriptions
// that are published to the broker.
package navigation

import (
	"net/url"

	"github.com/PuerkitoBio/purell"

	"github.com/The-Promised-Neverland/navlink/internal/models"
)

const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments

// Normalize reports ok=false for URLs that must not be published: anything
// unparsable or not plain/encrypted HTTP. Credentials, query and fragment are
// always dropped. The path survives only for plain HTTP with includePaths set.
func Normalize(rawURL string, includePaths bool) (models.Resource, bool) {
	normalized, err := purell.NormalizeURLString(rawURL, normalizeFlags)
	if err != nil {
		return models.Resource{}, false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return models.Resource{}, false
	}
	if u.Scheme != ProtocolHTTP && u.Scheme != ProtocolHTTPS {
		return models.Resource{}, false
	}
	host := u.Hostname()
	if host == "" {
		return models.Resource{}, false
	}

	res := models.Resource{
		Protocol: u.Scheme,
		Hostname: host,
	}
	if port := u.Port(); port != "" {
		res.Port = &port
	}
	if includePaths && u.Scheme == ProtocolHTTP {
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		res.Path = &path
	}
	return res, true
}
