// Package cache memoizes successful provider GET responses in Redis so
// repeated lookups (the same movie rating, the same show) never reach the
// scheduler or count against a provider's quota.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Provider:    "omdb",
//		Endpoint:    "/",
//		QueryParams: url.Values{"i": []string{"tt0111161"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch through the scheduler, then:
//		entry, _ = cache.ResponseToEntry(resp, 5*time.Minute)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Expiry
//
// ResponseToEntry honours Cache-Control max-age, then Expires, then the
// fallback TTL. no-store responses get a zero TTL and are never stored.
//
// # Metrics
//
//   - fetch_cache_hits_total{provider}
//   - fetch_cache_misses_total{provider}
//   - fetch_cache_stored_bytes_total{provider}
//   - fetch_cache_errors_total{operation}
package cache
