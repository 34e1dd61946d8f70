//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/fetch-scheduler/internal/testutil"
	"github.com/Sternrassler/fetch-scheduler/pkg/batch"
	"github.com/Sternrassler/fetch-scheduler/pkg/cache"
	"github.com/Sternrassler/fetch-scheduler/pkg/client"
	"github.com/Sternrassler/fetch-scheduler/pkg/provider"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(context.Background())
	})

	return redisClient
}

// newCachedOMDB builds an OMDB client against mock with a Redis cache.
func newCachedOMDB(t *testing.T, mock *testutil.MockAPI, manager *cache.Manager, apiKey string) *client.Client {
	t.Helper()

	p := provider.OMDB()
	p.BaseURL = mock.URL()
	p.Scheduler.DefaultRetryAfter = 20 * time.Millisecond

	cfg := p.ClientConfig("IntegrationTest/1.0", provider.Credentials{APIKey: apiKey})
	cfg.Cache = manager
	cfg.CacheTTL = time.Minute

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// TestFullRequestFlow tests Cache miss → Scheduler → Provider → Cache store → Cache hit.
func TestFullRequestFlow(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/", testutil.NewOKResponse(`{"Response":"True","imdbRating":"9.3"}`))

	c := newCachedOMDB(t, mock, manager, "key-a")
	ctx := context.Background()

	resp, err := c.Get(ctx, "/?i=tt0111161")
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	first, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.Header.Get("X-Cache") == "HIT" {
		t.Error("first response should not come from cache")
	}

	resp, err = c.Get(ctx, "/?i=tt0111161")
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	second, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.Header.Get("X-Cache") != "HIT" {
		t.Error("second response should come from cache")
	}
	if string(first) != string(second) {
		t.Errorf("cached body = %s, want %s", second, first)
	}
	if got := mock.RequestCount("/"); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}
}

// TestCacheKeyExcludesCredentials tests that clients with different keys share entries.
func TestCacheKeyExcludesCredentials(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/", testutil.NewOKResponse(`{"Response":"True"}`))

	ctx := context.Background()
	for _, key := range []string{"key-a", "key-b"} {
		resp, err := newCachedOMDB(t, mock, manager, key).Get(ctx, "/?i=tt0068646")
		if err != nil {
			t.Fatalf("request with %s failed: %v", key, err)
		}
		resp.Body.Close()
	}

	if got := mock.RequestCount("/"); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}
}

// TestRetryThenCache tests that a 429 is retried and only the final 200 is cached.
func TestRetryThenCache(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetSequence("/",
		testutil.NewTooManyRequestsResponse(-1),
		testutil.NewOKResponse(`{"Response":"True","imdbRating":"7.0"}`),
	)

	c := newCachedOMDB(t, mock, manager, "k")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := c.Get(ctx, "/?i=tt1")
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("request %d status = %d, want 200", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	if got := mock.RequestCount("/"); got != 2 {
		t.Errorf("upstream requests = %d, want 2 (429 + 200)", got)
	}
}

// TestNoCacheForErrorsAndPost tests that only successful GETs are cached.
func TestNoCacheForErrorsAndPost(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/missing", testutil.NewNotFoundResponse())
	mock.SetResponse("/games", testutil.NewOKResponse(`[]`))

	c := newCachedOMDB(t, mock, manager, "k")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := c.Get(ctx, "/missing")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()

		if err := c.PostText(ctx, "/games", "fields name;", nil); err != nil {
			t.Fatalf("POST failed: %v", err)
		}
	}

	if got := mock.RequestCount("/missing"); got != 2 {
		t.Errorf("404 requests = %d, want 2", got)
	}
	if got := mock.RequestCount("/games"); got != 2 {
		t.Errorf("POST requests = %d, want 2", got)
	}
}

// TestCacheExpiration tests that Cache-Control max-age bounds the entry lifetime.
func TestCacheExpiration(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	resp := testutil.NewOKResponse(`{"Response":"True"}`)
	resp.Headers["Cache-Control"] = "max-age=1"
	mock.SetResponse("/", resp)

	c := newCachedOMDB(t, mock, manager, "k")
	ctx := context.Background()

	get := func() {
		r, err := c.Get(ctx, "/?i=tt2")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		r.Body.Close()
	}

	get()
	get()
	if got := mock.RequestCount("/"); got != 1 {
		t.Fatalf("upstream requests before expiry = %d, want 1", got)
	}

	time.Sleep(1500 * time.Millisecond)
	get()
	if got := mock.RequestCount("/"); got != 2 {
		t.Errorf("upstream requests after expiry = %d, want 2", got)
	}
}

// TestBatchRatings tests batched OMDB lookups through one cached scheduler.
func TestBatchRatings(t *testing.T) {
	manager := cache.NewManager(setupRedis(t))

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/", testutil.NewOKResponse(`{"Response":"True","imdbRating":"8.0"}`))

	c := newCachedOMDB(t, mock, manager, "k")
	ids := []string{"tt1", "tt2", "tt3", "tt4", "tt5", "tt6", "tt1"}

	results := batch.Run(context.Background(), ids, provider.OMDB().BatchConfig(),
		func(ctx context.Context, id string) (provider.Ratings, error) {
			return provider.OMDBRatings(ctx, c, id)
		})

	ratings, err := batch.Values(results)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(ratings) != len(ids) {
		t.Fatalf("ratings = %d, want %d", len(ratings), len(ids))
	}
	for i, r := range ratings {
		if r.IMDBID != ids[i] || r.IMDB != "8.0" {
			t.Errorf("ratings[%d] = %+v", i, r)
		}
	}
	if got := mock.RequestCount("/"); got != 6 {
		t.Errorf("upstream requests = %d, want 6 (duplicate id served from cache)", got)
	}
	if peak := mock.PeakInFlight(); peak > provider.OMDB().Scheduler.MaxConcurrent {
		t.Errorf("peak in-flight = %d, exceeds max concurrent", peak)
	}
}
