package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/Sternrassler/fetch-scheduler/pkg/client"
	"github.com/Sternrassler/fetch-scheduler/pkg/logging"
	"github.com/Sternrassler/fetch-scheduler/pkg/metrics"
	"github.com/Sternrassler/fetch-scheduler/pkg/scheduler"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxRequestBody bounds forwarded POST bodies.
const maxRequestBody = 1 << 20

// hopHeaders are not copied from upstream responses.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
}

type server struct {
	clients map[string]*client.Client
	redis   redis.Cmdable
	logger  zerolog.Logger
}

func newServer(clients map[string]*client.Client, redisClient redis.Cmdable) *server {
	return &server{
		clients: clients,
		redis:   redisClient,
		logger:  logging.NewLogger("api-proxy"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/{provider}/{path...}", s.proxyHandler)
	return mux
}

type healthResponse struct {
	Status     string            `json:"status"`
	Schedulers []scheduler.Stats `json:"schedulers"`
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Schedulers: make([]scheduler.Stats, 0, len(names))}
	for _, name := range names {
		resp.Schedulers = append(resp.Schedulers, s.clients[name].Scheduler().Stats())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// proxyHandler forwards /{provider}/{path...} through the provider's client.
func (s *server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	c, ok := s.clients[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider "+name)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	endpoint := "/" + r.PathValue("path")
	if r.URL.RawQuery != "" {
		endpoint += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Method == http.MethodPost {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		body = bytes.NewReader(data)
	}

	req, err := c.NewRequest(r.Context(), r.Method, endpoint, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := c.Do(req)
	if err != nil {
		status := statusForError(err)
		s.logger.Warn().Err(err).Str("provider", name).Int("status", status).Msg("Proxy request failed")
		writeError(w, status, err.Error())
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug().Err(err).Str("provider", name).Msg("Failed to copy response body")
	}
}

// statusForError maps a client error to the proxy's own status.
func statusForError(err error) int {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	switch apiErr.ErrorClass {
	case client.ErrorClassRateLimit:
		return http.StatusServiceUnavailable
	case client.ErrorClassCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
