// Package provider holds the per-API presets: base URL, scheduler tuning,
// rate-limit signal parsing, batch size and credential injection.
package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/Sternrassler/fetch-scheduler/pkg/batch"
	"github.com/Sternrassler/fetch-scheduler/pkg/client"
	"github.com/Sternrassler/fetch-scheduler/pkg/ratelimit"
	"github.com/Sternrassler/fetch-scheduler/pkg/scheduler"
)

// Provider names.
const (
	NameTrakt = "trakt"
	NameOMDB  = "omdb"
	NameIGDB  = "igdb"
)

// Preset describes how one API is called.
type Preset struct {
	Name       string
	BaseURL    string
	Scheduler  scheduler.Config
	Classifier ratelimit.HTTPClassifier
	BatchSize  int
}

// Credentials carries the secrets a provider needs. Unused fields are ignored.
type Credentials struct {
	// APIKey is the Trakt client id or the OMDB api key.
	APIKey string

	// ClientID and AccessToken authenticate IGDB (Twitch app credentials).
	ClientID    string
	AccessToken string
}

// Trakt returns the Trakt preset: 3 concurrent, 3 retries, 10s default
// Retry-After, remaining count from the X-Ratelimit JSON header.
func Trakt() Preset {
	cfg := scheduler.DefaultConfig("Trakt")
	cfg.MaxConcurrent = 3
	cfg.MaxRetries = 3
	cfg.DefaultRetryAfter = 10 * time.Second

	return Preset{
		Name:       NameTrakt,
		BaseURL:    "https://api.trakt.tv",
		Scheduler:  cfg,
		Classifier: ratelimit.HTTPClassifier{Remaining: ratelimit.TraktRemaining},
		BatchSize:  3,
	}
}

// OMDB returns the OMDB preset: 5 concurrent, 2 retries, 50ms between dispatches.
func OMDB() Preset {
	cfg := scheduler.DefaultConfig("OMDB")
	cfg.MaxConcurrent = 5
	cfg.MaxRetries = 2
	cfg.MinInterval = 50 * time.Millisecond

	return Preset{
		Name:       NameOMDB,
		BaseURL:    "https://www.omdbapi.com",
		Scheduler:  cfg,
		Classifier: ratelimit.HTTPClassifier{},
		BatchSize:  5,
	}
}

// IGDB returns the IGDB preset. IGDB allows about 4 requests per second;
// dispatches are spaced 300ms apart and capped at 4/s, and 5xx is retried.
func IGDB() Preset {
	cfg := scheduler.DefaultConfig("IGDB")
	cfg.MaxConcurrent = 3
	cfg.MaxRetries = 3
	cfg.MinInterval = 300 * time.Millisecond
	cfg.RatePerSecond = 4
	cfg.Burst = 4
	cfg.DefaultRetryAfter = 5 * time.Second
	cfg.TransportBackoff = 2 * time.Second

	return Preset{
		Name:       NameIGDB,
		BaseURL:    "https://api.igdb.com/v4",
		Scheduler:  cfg,
		Classifier: ratelimit.HTTPClassifier{RetryServerErrors: true},
		BatchSize:  3,
	}
}

var presets = map[string]func() Preset{
	NameTrakt: Trakt,
	NameOMDB:  OMDB,
	NameIGDB:  IGDB,
}

// Lookup returns the preset registered under name.
func Lookup(name string) (Preset, error) {
	fn, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown provider %q", name)
	}
	return fn(), nil
}

// Names lists the registered providers in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClientConfig builds a client configuration carrying creds.
func (p Preset) ClientConfig(userAgent string, creds Credentials) client.Config {
	cfg := client.DefaultConfig(p.Name, p.BaseURL, userAgent)
	cfg.Scheduler = p.Scheduler
	cfg.Classifier = p.Classifier
	cfg.Headers, cfg.Query = p.auth(creds)
	return cfg
}

// NewClient creates a client with a scheduler of its own.
func (p Preset) NewClient(userAgent string, creds Credentials) (*client.Client, error) {
	return client.New(p.ClientConfig(userAgent, creds))
}

// BatchConfig returns the batch runner settings for this provider.
func (p Preset) BatchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Size = p.BatchSize
	cfg.Label = p.Name
	return cfg
}

func (p Preset) auth(creds Credentials) (http.Header, url.Values) {
	h := http.Header{}
	q := url.Values{}

	switch p.Name {
	case NameTrakt:
		h.Set("Content-Type", "application/json")
		h.Set("trakt-api-version", "2")
		if creds.APIKey != "" {
			h.Set("trakt-api-key", creds.APIKey)
		}
	case NameOMDB:
		if creds.APIKey != "" {
			q.Set("apikey", creds.APIKey)
		}
	case NameIGDB:
		if creds.ClientID != "" {
			h.Set("Client-ID", creds.ClientID)
		}
		if creds.AccessToken != "" {
			h.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}
	return h, q
}
