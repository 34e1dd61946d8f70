package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response.
type Key struct {
	// Provider is the API name, e.g. "trakt".
	Provider string

	// Endpoint is the request path, e.g. "/shows/loki-2021/seasons".
	Endpoint string

	// QueryParams are the caller's query parameters. Credentials added by the
	// client are not part of the key.
	QueryParams url.Values
}

// String generates a deterministic key.
// Format: apicache:provider:endpoint:q1=v1,v2:q2=v
//
// Example:
//
//	apicache:trakt:shows/loki-2021/seasons:extended=full,images
func (k Key) String() string {
	parts := []string{"apicache", strings.ToLower(k.Provider)}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, name+"="+strings.Join(k.QueryParams[name], ","))
		}
	}

	return strings.Join(parts, ":")
}
