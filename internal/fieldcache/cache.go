// Package fieldcache keeps a time-bounded local copy of CRM field metadata so
// the pipeline does not hit the metadata API on every sync.
package fieldcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/suitesync/suitesync/internal/domain"
	"github.com/suitesync/suitesync/internal/settings"
)

// scope partitions cache entries from other settings.
const scope = "fieldcache"

// keyPrefixLen bounds the module-derived part of the key so payload and
// timestamp keys both fit the settings store's key-length limit.
const keyPrefixLen = settings.MaxKeyLength - len("fields__at") - 1

// Fetcher fetches fresh field definitions when the cache cannot serve a
// module. The CRM client satisfies it.
type Fetcher interface {
	GetModuleFields(ctx context.Context, module string) (map[string]domain.CrmField, error)
}

// RefreshResult reports the outcome of refreshing one module's cache.
type RefreshResult struct {
	Success    bool   `json:"success"`
	FieldCount int    `json:"fieldCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Cache reads field definitions through the settings store, falling back to
// the fetcher when an entry is missing or older than the TTL.
type Cache struct {
	store   settings.Store
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
}

// New creates a Cache. TTL at or below zero means entries never expire on
// their own and only ForceRefresh/ClearCache invalidate them.
func New(store settings.Store, fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, fetcher: fetcher, ttl: ttl, logger: logger}
}

// GetFields returns the field definitions for a module, serving from cache
// when fresh. On miss or forceRefresh it fetches from the CRM, persists the
// payload and its timestamp, and returns the fresh data. An upstream failure
// propagates and leaves the cache untouched.
func (c *Cache) GetFields(ctx context.Context, module string, forceRefresh bool) (map[string]domain.CrmField, error) {
	if !forceRefresh {
		if fields, ok := c.readFresh(ctx, module); ok {
			return fields, nil
		}
	}

	fields, err := c.fetcher.GetModuleFields(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("refresh field cache for %s: %w", module, err)
	}

	if err := c.write(ctx, module, fields); err != nil {
		// Serving fresh data matters more than persisting it.
		c.logger.Warn("failed to persist field cache", "module", module, "error", err)
	}
	return fields, nil
}

// RefreshAll force-refreshes each module's cache. One module's failure does
// not abort the others; the report carries per-module outcomes.
func (c *Cache) RefreshAll(ctx context.Context, modules []string) map[string]RefreshResult {
	report := make(map[string]RefreshResult, len(modules))
	for _, module := range modules {
		fields, err := c.GetFields(ctx, module, true)
		if err != nil {
			report[module] = RefreshResult{Success: false, Error: err.Error()}
			continue
		}
		report[module] = RefreshResult{Success: true, FieldCount: len(fields)}
	}
	return report
}

// ClearCache removes one module's payload and timestamp together.
func (c *Cache) ClearCache(ctx context.Context, module string) error {
	payloadKey, timeKey := cacheKeys(module)
	if err := c.store.Delete(ctx, payloadKey, scope, ""); err != nil {
		return err
	}
	return c.store.Delete(ctx, timeKey, scope, "")
}

// ClearAllCaches removes every listed module's cache entries.
func (c *Cache) ClearAllCaches(ctx context.Context, modules []string) error {
	for _, module := range modules {
		if err := c.ClearCache(ctx, module); err != nil {
			return err
		}
	}
	return nil
}

// readFresh returns the cached definitions when present and inside the TTL.
func (c *Cache) readFresh(ctx context.Context, module string) (map[string]domain.CrmField, bool) {
	payloadKey, timeKey := cacheKeys(module)

	raw, ok, err := c.store.Get(ctx, timeKey, scope, "")
	if err != nil || !ok {
		return nil, false
	}
	cachedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(time.Unix(cachedAt, 0)) >= c.ttl {
		return nil, false
	}

	payload, ok, err := c.store.Get(ctx, payloadKey, scope, "")
	if err != nil || !ok {
		return nil, false
	}
	var fields map[string]domain.CrmField
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		c.logger.Warn("corrupt field cache payload", "module", module, "error", err)
		return nil, false
	}
	return fields, true
}

// write persists payload first, then the freshness timestamp, so a partial
// write never marks stale data fresh.
func (c *Cache) write(ctx context.Context, module string, fields map[string]domain.CrmField) error {
	payloadKey, timeKey := cacheKeys(module)

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode field cache: %w", err)
	}
	if err := c.store.Set(ctx, payloadKey, string(payload), scope, ""); err != nil {
		return err
	}
	return c.store.Set(ctx, timeKey, strconv.FormatInt(time.Now().Unix(), 10), scope, "")
}

// cacheKeys derives the payload and timestamp keys for a module. The module
// part is lowercased and bounded so both keys satisfy the store's key limit.
func cacheKeys(module string) (payloadKey, timeKey string) {
	m := strings.ToLower(module)
	if len(m) > keyPrefixLen {
		m = m[:keyPrefixLen]
	}
	return "fields_" + m, "fields_" + m + "_at"
}
