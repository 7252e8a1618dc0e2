package main

import (
	"testing"
	"time"

	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoOrder_ReconstructsAsCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := demoOrder("demo-1", "Sari", now)
	require.NoError(t, err)

	assert.Equal(t, "64380.00", money.Format(rec.Total))
	assert.Equal(t, "6380.00", money.Format(rec.TaxAmount))
	require.Len(t, rec.Events, 4)
	assert.Equal(t, enum.EventOrderCompleted, rec.Events[3].EventType)

	snap, err := snapshot.FromArchived(rec)
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceArchive, snap.Source)
	assert.Equal(t, enum.OrderStatusCompleted, snap.Status)
	assert.Len(t, snap.Items, 2)
	assert.True(t, snap.Totals.Remaining.IsZero())
	require.NotNil(t, snap.EndedAt)
	assert.True(t, snap.EndedAt.Equal(now))
}
