package fieldcache_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitesync/suitesync/internal/domain"
	"github.com/suitesync/suitesync/internal/fieldcache"
	"github.com/suitesync/suitesync/internal/settings"
	"github.com/suitesync/suitesync/internal/testhelpers"
)

type fakeFetcher struct {
	calls  int
	fields map[string]domain.CrmField
	err    error
}

func (f *fakeFetcher) GetModuleFields(ctx context.Context, module string) (map[string]domain.CrmField, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func leadFields() map[string]domain.CrmField {
	return map[string]domain.CrmField{
		"last_name": {Name: "last_name", Module: "Leads", Type: "varchar", Label: "Last Name", Required: true},
		"email1":    {Name: "email1", Module: "Leads", Type: "email", Label: "Email Address"},
	}
}

func newCache(t *testing.T, fetcher *fakeFetcher, ttl time.Duration) (*fieldcache.Cache, settings.Store) {
	t.Helper()
	store := settings.NewSQLiteStore(testhelpers.NewMigratedDB(t))
	return fieldcache.New(store, fetcher, ttl, nil), store
}

func TestGetFields_SecondCallIsCacheHit(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, _ := newCache(t, fetcher, 24*time.Hour)
	ctx := context.Background()

	first, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)
	second, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls, "second call within TTL must not hit the API")
	assert.Equal(t, first, second)
	assert.True(t, second["last_name"].Required)
}

func TestGetFields_ForceRefreshBypassesCache(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, _ := newCache(t, fetcher, 24*time.Hour)
	ctx := context.Background()

	_, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)
	_, err = cache.GetFields(ctx, "Leads", true)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls)
}

func TestGetFields_ExpiredEntryRefetches(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, _ := newCache(t, fetcher, time.Nanosecond)
	ctx := context.Background()

	_, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestGetFields_FetchFailureLeavesCacheUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, _ := newCache(t, fetcher, 24*time.Hour)
	ctx := context.Background()

	_, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)

	fetcher.err = errors.New("connection refused")
	_, err = cache.GetFields(ctx, "Leads", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	// The stale-but-valid entry still serves non-forced reads.
	fetcher.err = nil
	fields, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
	assert.Equal(t, 2, fetcher.calls)
}

func TestRefreshAll_PartialFailure(t *testing.T) {
	flaky := &flakyFetcher{good: leadFields(), failOn: "Cases"}
	cache := fieldcache.New(settings.NewSQLiteStore(testhelpers.NewMigratedDB(t)), flaky, 24*time.Hour, nil)

	report := cache.RefreshAll(context.Background(), []string{"Leads", "Cases", "Contacts"})

	require.Len(t, report, 3)
	assert.True(t, report["Leads"].Success)
	assert.Equal(t, 2, report["Leads"].FieldCount)
	assert.False(t, report["Cases"].Success)
	assert.Contains(t, report["Cases"].Error, "metadata unavailable")
	assert.True(t, report["Contacts"].Success, "failure of one module must not abort the rest")
}

type flakyFetcher struct {
	good   map[string]domain.CrmField
	failOn string
}

func (f *flakyFetcher) GetModuleFields(ctx context.Context, module string) (map[string]domain.CrmField, error) {
	if module == f.failOn {
		return nil, errors.New("metadata unavailable")
	}
	return f.good, nil
}

func TestClearCache_RemovesPayloadAndTimestamp(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, store := newCache(t, fetcher, 24*time.Hour)
	ctx := context.Background()

	_, err := cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)

	require.NoError(t, cache.ClearCache(ctx, "Leads"))

	_, ok, err := store.Get(ctx, "fields_leads", "fieldcache", "")
	require.NoError(t, err)
	assert.False(t, ok, "payload must be gone")
	_, ok, err = store.Get(ctx, "fields_leads_at", "fieldcache", "")
	require.NoError(t, err)
	assert.False(t, ok, "no orphaned timestamp entry")

	// Cleared entry forces a refetch.
	_, err = cache.GetFields(ctx, "Leads", false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheKeys_BoundedForLongModuleNames(t *testing.T) {
	fetcher := &fakeFetcher{fields: leadFields()}
	cache, _ := newCache(t, fetcher, 24*time.Hour)

	long := strings.Repeat("VeryLongModuleName", 8)
	_, err := cache.GetFields(context.Background(), long, false)
	require.NoError(t, err, "oversized module names must still produce storable keys")
}
