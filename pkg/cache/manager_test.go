//go:build integration

package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client for it.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})
	return client
}

func TestManager_Integration(t *testing.T) {
	manager := NewManager(setupRedis(t))
	ctx := context.Background()

	key := Key{Provider: "omdb", Endpoint: "/", QueryParams: url.Values{"i": {"tt0111161"}}}

	t.Run("miss", func(t *testing.T) {
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		entry := &Entry{
			Data:       []byte(`{"imdbRating":"9.3"}`),
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": []string{"application/json"}},
			Expires:    time.Now().Add(5 * time.Minute),
			CachedAt:   time.Now(),
		}
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, err := manager.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got.Data) != string(entry.Data) {
			t.Errorf("Data = %s, want %s", got.Data, entry.Data)
		}
		if got.Headers.Get("Content-Type") != "application/json" {
			t.Error("headers not round-tripped")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := manager.Delete(ctx, key); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("expired entries are not stored", func(t *testing.T) {
		expired := &Entry{Data: []byte("x"), Expires: time.Now().Add(-time.Minute)}
		if err := manager.Set(ctx, key, expired); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("corrupted entry", func(t *testing.T) {
		bad := Key{Provider: "omdb", Endpoint: "/corrupt"}
		if err := manager.redis.Set(ctx, bad.String(), "not json", time.Minute).Err(); err != nil {
			t.Fatalf("seed corrupt entry: %v", err)
		}
		if _, err := manager.Get(ctx, bad); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
		}
	})
}
