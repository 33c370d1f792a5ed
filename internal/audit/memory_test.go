package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(event, ip string, severity models.Severity, ts time.Time) models.SecurityEvent {
	e := models.NewSecurityEvent(event, ip, severity, "", "")
	e.Timestamp = ts
	return e
}

func TestMemoryStore_AppendAndRecent(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		event := makeEvent(fmt.Sprintf("event_%d", i), "10.0.0.1", models.SeverityLow, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Append(ctx, event))
	}

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event_0", events[0].Event, "events come back oldest first")
	assert.Equal(t, "event_2", events[2].Event)
}

func TestMemoryStore_EventsByIP_TrailingSlice(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx,
			makeEvent(fmt.Sprintf("event_%d", i), "10.0.0.1", models.SeverityLow, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, store.Append(ctx, makeEvent("other", "10.0.0.2", models.SeverityLow, base)))

	// The most recent 3 for the IP, still oldest-first within the slice.
	events, err := store.EventsByIP(ctx, "10.0.0.1", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event_2", events[0].Event)
	assert.Equal(t, "event_4", events[2].Event)
}

func TestMemoryStore_EventsByIP_UnknownIP(t *testing.T) {
	store := NewMemoryStore(0)
	events, err := store.EventsByIP(context.Background(), "192.0.2.1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events, "unknown IP yields an empty slice, not nil")
}

func TestMemoryStore_ZeroLimit(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, makeEvent("e", "10.0.0.1", models.SeverityLow, time.Now())))

	events, err := store.EventsByIP(ctx, "10.0.0.1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_CapDropsOldest(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx,
			makeEvent(fmt.Sprintf("event_%d", i), "10.0.0.1", models.SeverityLow, base.Add(time.Duration(i)*time.Second))))
	}

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3, "cap keeps only the newest events")
	assert.Equal(t, "event_2", events[0].Event)
	assert.Equal(t, "event_4", events[2].Event)

	// Severity totals are cumulative and unaffected by the cap.
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(5), stats.BySeverity[models.SeverityLow])
}

func TestMemoryStore_StatsBySeverity(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Append(ctx, makeEvent("a", "10.0.0.1", models.SeverityLow, now)))
	require.NoError(t, store.Append(ctx, makeEvent("b", "10.0.0.1", models.SeverityHigh, now)))
	require.NoError(t, store.Append(ctx, makeEvent("c", "10.0.0.2", models.SeverityHigh, now)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.BySeverity[models.SeverityLow])
	assert.Equal(t, int64(2), stats.BySeverity[models.SeverityHigh])
}

func TestLogger_SwallowsBackendErrors(t *testing.T) {
	logger := NewLogger(failingStore{})
	// Must not panic or propagate the append failure.
	logger.Log(context.Background(), "event", "10.0.0.1", models.SeverityLow, "details", "")
}

func TestLogger_WritesThrough(t *testing.T) {
	store := NewMemoryStore(0)
	logger := NewLogger(store)

	logger.Log(context.Background(), "login_failed", "10.0.0.1", models.SeverityMedium, "identifier=user", "")

	events, err := store.EventsByIP(context.Background(), "10.0.0.1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "login_failed", events[0].Event)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

type failingStore struct{}

func (failingStore) Append(context.Context, models.SecurityEvent) error {
	return fmt.Errorf("backend down")
}

func (failingStore) EventsByIP(context.Context, string, int) ([]models.SecurityEvent, error) {
	return nil, fmt.Errorf("backend down")
}

func (failingStore) Recent(context.Context, int) ([]models.SecurityEvent, error) {
	return nil, fmt.Errorf("backend down")
}

func (failingStore) Stats(context.Context) (Stats, error) {
	return Stats{}, fmt.Errorf("backend down")
}

func (failingStore) Close() error { return nil }
