package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockArchive struct {
	fetchFn func(ctx context.Context, id string) (*ArchivedOrder, error)
}

func (m *mockArchive) FetchArchived(ctx context.Context, id string) (*ArchivedOrder, error) {
	return m.fetchFn(ctx, id)
}

type mockLive struct {
	calls   int
	fetchFn func(ctx context.Context, id string) (*LiveOrder, error)
}

func (m *mockLive) FetchLive(ctx context.Context, id string) (*LiveOrder, error) {
	m.calls++
	return m.fetchFn(ctx, id)
}

type recordingObserver struct {
	fetches []string
}

func (r *recordingObserver) SnapshotFetched(src Source, ok bool) {
	outcome := "fail"
	if ok {
		outcome = "ok"
	}
	r.fetches = append(r.fetches, string(src)+":"+outcome)
}

func dec(s string) decimal.Decimal { return money.MustParse(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func archivedFixture() *ArchivedOrder {
	return &ArchivedOrder{
		Header: Header{
			OrderID:       "o-1",
			ReceiptNumber: "R-0001",
			Status:        enum.OrderStatusCompleted,
			TableName:     strPtr("T1"),
			GuestCount:    2,
			CreatedAt:     1700000000000,
		},
		Items: []RecordItem{
			{InstanceID: "i-1", ProductID: "p-1", Name: "Latte", Price: dec("25.00"), Quantity: 2, DiscountAmount: dec("5.00")},
			{InstanceID: "i-2", ProductID: "p-2", Name: "Cake", Price: dec("30.00"), Quantity: 1, IsComped: true},
		},
		Payments: []RecordPayment{
			{PaymentID: "pay-1", Method: enum.PaymentMethodCash, Amount: dec("40.00"), Timestamp: 1700000001000},
			{PaymentID: "pay-2", Method: enum.PaymentMethodCard, Amount: dec("10.00"), Cancelled: true, CancelReason: strPtr("wrong card")},
		},
		Events: []Event{
			{Sequence: 2, EventType: enum.EventItemsAdded, OperatorName: "Ana", Timestamp: 1700000000500},
			{Sequence: 1, EventType: enum.EventTableOpened, OperatorName: "Ana", Timestamp: 1700000000000},
		},
		Total:           dec("47.30"),
		DiscountAmount:  dec("0.00"),
		SurchargeAmount: dec("2.00"),
		TaxAmount:       dec("4.30"),
	}
}

func liveFixture() *LiveOrder {
	return &LiveOrder{
		Snapshot: &ServerSnapshot{
			Header: Header{OrderID: "o-1", Status: enum.OrderStatusActive, IsRetail: true},
			Items: []RecordItem{
				{InstanceID: "i-1", Name: "Tea", Price: dec("0.10"), Quantity: 1, LineTotal: decPtr("0.10")},
				{InstanceID: "i-2", Name: "Tea", Price: dec("0.20"), Quantity: 1, LineTotal: decPtr("0.20")},
			},
			Payments: []RecordPayment{
				{PaymentID: "pay-1", Method: enum.PaymentMethodCash, Amount: dec("1.00")},
			},
			Subtotal: dec("0.30"),
			Tax:      dec("0.03"),
			Total:    dec("0.33"),
			Paid:     dec("0.15"),
		},
		Events: []Event{{Sequence: 1, EventType: enum.EventTableOpened}},
	}
}

func TestFromArchived(t *testing.T) {
	snap, err := FromArchived(archivedFixture())
	require.NoError(t, err)

	assert.Equal(t, SourceArchive, snap.Source)
	assert.Equal(t, "T1", snap.TableName)
	require.Len(t, snap.Items, 2)

	latte := snap.Items[0]
	assert.Equal(t, "45.00", money.Format(latte.LineTotal))
	assert.Equal(t, "22.50", money.Format(latte.UnitPrice))
	assert.Equal(t, "25.00", money.Format(latte.OriginalPrice))
	assert.Equal(t, int32(2), latte.UnpaidQuantity)

	cake := snap.Items[1]
	assert.True(t, cake.LineTotal.IsZero())
	assert.Equal(t, "30.00", money.Format(cake.UnitPrice))

	assert.Equal(t, "47.30", money.Format(snap.Totals.Total))
	assert.Equal(t, "45.30", money.Format(snap.Totals.OriginalTotal))
	assert.Equal(t, "41.00", money.Format(snap.Totals.Subtotal))
	assert.Equal(t, "40.00", money.Format(snap.Totals.Paid), "cancelled payments are not paid")
	assert.Equal(t, "7.30", money.Format(snap.Totals.Remaining))

	total := money.OrderTotal(snap.Totals.Subtotal, snap.Totals.Discount, snap.Totals.Surcharge, snap.Totals.Tax)
	assert.True(t, total.Equal(snap.Totals.Total))

	require.Len(t, snap.Timeline, 2)
	assert.Equal(t, enum.EventTableOpened, snap.Timeline[0].EventType)
	assert.Equal(t, "Table Opened", snap.Timeline[0].Summary)
	assert.Equal(t, "Items Added", snap.Timeline[1].Summary)
}

func TestFromArchived_RemainingNeverNegative(t *testing.T) {
	rec := archivedFixture()
	rec.Payments = []RecordPayment{{PaymentID: "p", Amount: dec("100.00")}}

	snap, err := FromArchived(rec)
	require.NoError(t, err)
	assert.True(t, snap.Totals.Remaining.IsZero())
}

func TestFromLive_TakesServerFold(t *testing.T) {
	snap, err := FromLive(liveFixture())
	require.NoError(t, err)

	assert.Equal(t, SourceLive, snap.Source)
	assert.True(t, snap.IsRetail)
	assert.Equal(t, "0.30", money.Format(snap.Totals.Subtotal))
	assert.Equal(t, "0.33", money.Format(snap.Totals.Total))
	assert.Equal(t, "0.15", money.Format(snap.Totals.Paid), "paid_amount wins over the listed payments")
	assert.Equal(t, "0.18", money.Format(snap.Totals.Remaining))
	assert.Equal(t, "0.10", money.Format(snap.Items[0].LineTotal))
	assert.Len(t, snap.Timeline, 1)
}

func TestFromLive_PaidWithoutListedPayments(t *testing.T) {
	live := liveFixture()
	live.Snapshot.Payments = nil
	live.Snapshot.Total = dec("20.00")
	live.Snapshot.Paid = dec("15.00")

	snap, err := FromLive(live)
	require.NoError(t, err)
	assert.Equal(t, "15.00", money.Format(snap.Totals.Paid))
	assert.Equal(t, "5.00", money.Format(snap.Totals.Remaining))
}

func TestFromLive_OverpaidRemainingIsZero(t *testing.T) {
	live := liveFixture()
	live.Snapshot.Paid = dec("5.00")

	snap, err := FromLive(live)
	require.NoError(t, err)
	assert.True(t, snap.Totals.Remaining.IsZero())
}

func TestFromArchived_RebuildsLineTotal(t *testing.T) {
	rec := archivedFixture()
	rec.Items[0].LineTotal = decPtr("99.99")

	snap, err := FromArchived(rec)
	require.NoError(t, err)
	assert.Equal(t, "45.00", money.Format(snap.Items[0].LineTotal))
	assert.Equal(t, "22.50", money.Format(snap.Items[0].UnitPrice))
}

func TestFromLive_MissingSnapshot(t *testing.T) {
	_, err := FromLive(&LiveOrder{Events: []Event{{Sequence: 1}}})
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestBuildTimeline_UnknownEventType(t *testing.T) {
	tl := BuildTimeline([]Event{{Sequence: 1, EventType: "SOMETHING_NEW"}, {Sequence: 2}})
	require.Len(t, tl, 2)
	assert.Equal(t, "Something New", tl[0].Summary)
	assert.Equal(t, "Unknown Event", tl[1].Summary)
}

func TestArchivedOrder_DecodesFlatHeader(t *testing.T) {
	raw := `{"order_id":"o-9","status":"VOIDED","table_name":null,"is_retail":true,
		"items":[],"payments":[],"events":[],"total_amount":"12.50","discount_amount":"0",
		"surcharge_amount":"0","tax":"0"}`

	var rec ArchivedOrder
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, "o-9", rec.OrderID)
	assert.Nil(t, rec.TableName)

	snap, err := FromArchived(&rec)
	require.NoError(t, err)
	assert.Equal(t, "12.50", money.Format(snap.Totals.Remaining))
}

func TestReconstructor_PrefersArchive(t *testing.T) {
	live := &mockLive{fetchFn: func(ctx context.Context, id string) (*LiveOrder, error) {
		return liveFixture(), nil
	}}
	obs := &recordingObserver{}
	r := NewReconstructor(&mockArchive{fetchFn: func(ctx context.Context, id string) (*ArchivedOrder, error) {
		return archivedFixture(), nil
	}}, live, obs, nil)

	snap, err := r.Fetch(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, SourceArchive, snap.Source)
	assert.Zero(t, live.calls)
	assert.Equal(t, []string{"archive:ok"}, obs.fetches)
}

func TestReconstructor_FallsBackToLive(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReconstructor(&mockArchive{fetchFn: func(ctx context.Context, id string) (*ArchivedOrder, error) {
		return nil, ErrNotFound
	}}, &mockLive{fetchFn: func(ctx context.Context, id string) (*LiveOrder, error) {
		return liveFixture(), nil
	}}, obs, nil)

	snap, err := r.Fetch(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, SourceLive, snap.Source)
	assert.Equal(t, []string{"archive:fail", "live:ok"}, obs.fetches)
}

func TestReconstructor_BothFailSurfacesArchiveError(t *testing.T) {
	archiveErr := errors.New("archive down")
	liveErr := errors.New("live down")
	r := NewReconstructor(&mockArchive{fetchFn: func(ctx context.Context, id string) (*ArchivedOrder, error) {
		return nil, archiveErr
	}}, &mockLive{fetchFn: func(ctx context.Context, id string) (*LiveOrder, error) {
		return nil, liveErr
	}}, nil, nil)

	_, err := r.Fetch(context.Background(), "o-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, archiveErr)
	assert.NotErrorIs(t, err, liveErr)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, liveErr, fe.Fallback)
	assert.Contains(t, err.Error(), "archive down")
}

func TestReconstructor_LiveWithoutSnapshotFails(t *testing.T) {
	r := NewReconstructor(&mockArchive{fetchFn: func(ctx context.Context, id string) (*ArchivedOrder, error) {
		return nil, ErrNotFound
	}}, &mockLive{fetchFn: func(ctx context.Context, id string) (*LiveOrder, error) {
		return &LiveOrder{}, nil
	}}, nil, nil)

	_, err := r.Fetch(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrNotFound)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, fe.Fallback, ErrSnapshotMissing)
}
