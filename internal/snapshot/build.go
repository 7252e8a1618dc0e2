package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FromArchived builds a Snapshot from an archived record. The record's
// settled total, discount, surcharge and tax are kept; subtotal is derived
// from them so the totals identity holds.
func FromArchived(rec *ArchivedOrder) (*Snapshot, error) {
	if rec == nil {
		return nil, fmt.Errorf("archived order: %w", ErrNotFound)
	}
	if rec.OrderID == "" {
		return nil, fmt.Errorf("archived order has no order_id")
	}

	snap := newFromHeader(rec.Header, SourceArchive)
	snap.Items = buildItems(rec.Items, false)
	snap.Payments = buildPayments(rec.Payments)

	total := money.Round(rec.Total)
	discount := money.Round(rec.DiscountAmount)
	surcharge := money.Round(rec.SurchargeAmount)
	tax := money.Round(rec.TaxAmount)
	snap.Totals = Totals{
		Subtotal:      money.OriginalTotal(total, discount, surcharge).Sub(tax),
		Discount:      discount,
		Surcharge:     surcharge,
		Tax:           tax,
		Total:         total,
		OriginalTotal: money.OriginalTotal(total, discount, surcharge),
	}
	settle(&snap.Totals, snap.Payments)
	snap.Timeline = BuildTimeline(rec.Events)
	return snap, nil
}

// FromLive builds a Snapshot from the server snapshot carried by a live
// event tail. The events only feed the timeline.
func FromLive(live *LiveOrder) (*Snapshot, error) {
	if live == nil || live.Snapshot == nil {
		return nil, ErrSnapshotMissing
	}
	srv := live.Snapshot
	if srv.OrderID == "" {
		return nil, fmt.Errorf("live snapshot has no order_id")
	}

	snap := FromServerSnapshot(srv)
	snap.Timeline = BuildTimeline(live.Events)
	return snap, nil
}

// FromServerSnapshot converts a backend-folded snapshot without a timeline.
// Used for pushed updates, which carry no event tail. Money figures are the
// backend's; only Remaining is derived, and clamped at zero.
func FromServerSnapshot(srv *ServerSnapshot) *Snapshot {
	snap := newFromHeader(srv.Header, SourceLive)
	snap.Items = buildItems(srv.Items, true)
	snap.Payments = buildPayments(srv.Payments)

	total := money.Round(srv.Total)
	discount := money.Round(srv.Discount)
	surcharge := money.Round(srv.Surcharge)
	paid := money.Round(srv.Paid)
	snap.Totals = Totals{
		Subtotal:      money.Round(srv.Subtotal),
		Discount:      discount,
		Surcharge:     surcharge,
		Tax:           money.Round(srv.Tax),
		Total:         total,
		OriginalTotal: money.OriginalTotal(total, discount, surcharge),
		Paid:          paid,
		Remaining:     money.Remaining(total, paid),
	}
	snap.Timeline = []TimelineEntry{}
	return snap
}

func newFromHeader(h Header, src Source) *Snapshot {
	snap := &Snapshot{
		OrderID:       h.OrderID,
		ReceiptNumber: h.ReceiptNumber,
		Status:        h.Status,
		TableID:       deref(h.TableID),
		TableName:     deref(h.TableName),
		ZoneID:        deref(h.ZoneID),
		ZoneName:      deref(h.ZoneName),
		IsRetail:      h.IsRetail,
		GuestCount:    h.GuestCount,
		MemberID:      deref(h.MemberID),
		Source:        src,
		CreatedAt:     fromMillis(h.CreatedAt),
	}
	if h.EndedAt != nil {
		t := fromMillis(*h.EndedAt)
		snap.EndedAt = &t
	}
	return snap
}

// settle fills Paid and Remaining from the non-cancelled payments.
func settle(t *Totals, payments []Payment) {
	amounts := make([]decimal.Decimal, 0, len(payments))
	for _, p := range payments {
		if !p.Cancelled {
			amounts = append(amounts, p.Amount)
		}
	}
	t.Paid = money.Round(money.Sum(amounts...))
	t.Remaining = money.Remaining(t.Total, t.Paid)
}

// buildItems converts backend items. Archived lines are always rebuilt from
// price, quantity and adjustments; live lines keep the backend's line_total
// when it sends one.
func buildItems(records []RecordItem, trustLineTotal bool) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		unit := money.Round(r.Price)
		discount := money.Round(r.DiscountAmount)
		surcharge := money.Round(r.SurchargeAmount)

		var line decimal.Decimal
		switch {
		case r.IsRemoved || r.IsComped:
			line = decimal.Zero
		case trustLineTotal && r.LineTotal != nil:
			line = money.Round(*r.LineTotal)
		default:
			line = money.LineTotal(unit, r.Quantity, discount, surcharge)
		}

		original := unit
		if r.OriginalPrice != nil {
			original = money.Round(*r.OriginalPrice)
		}

		unpaid := r.Quantity
		if r.UnpaidQuantity != nil {
			unpaid = *r.UnpaidQuantity
		}

		it := Item{
			InstanceID:            r.InstanceID,
			ProductID:             r.ProductID,
			Name:                  r.Name,
			Quantity:              r.Quantity,
			UnpaidQuantity:        unpaid,
			UnitPrice:             money.EffectiveUnitPrice(line, unit, r.Quantity),
			OriginalPrice:         original,
			Discount:              discount,
			Surcharge:             surcharge,
			LineTotal:             line,
			SelectedOptions:       r.SelectedOptions,
			SelectedSpecification: r.SelectedSpecification,
			IsRemoved:             r.IsRemoved,
			IsComped:              r.IsComped,
			Note:                  deref(r.Note),
		}
		if r.IsRemoved || r.IsComped {
			it.UnitPrice = unit
		}
		items = append(items, it)
	}
	return items
}

func buildPayments(records []RecordPayment) []Payment {
	payments := make([]Payment, 0, len(records))
	for _, r := range records {
		p := Payment{
			PaymentID:    r.PaymentID,
			Method:       r.Method,
			Amount:       money.Round(r.Amount),
			Cancelled:    r.Cancelled,
			CancelReason: deref(r.CancelReason),
			PaidAt:       fromMillis(r.Timestamp),
		}
		if r.Tendered != nil {
			v := money.Round(*r.Tendered)
			p.Tendered = &v
		}
		if r.Change != nil {
			v := money.Round(*r.Change)
			p.Change = &v
		}
		payments = append(payments, p)
	}
	return payments
}

// BuildTimeline orders events by sequence and renders one entry per event.
func BuildTimeline(events []Event) []TimelineEntry {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Sequence != sorted[j].Sequence {
			return sorted[i].Sequence < sorted[j].Sequence
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	timeline := make([]TimelineEntry, 0, len(sorted))
	for _, e := range sorted {
		timeline = append(timeline, TimelineEntry{
			Sequence:     e.Sequence,
			EventType:    e.EventType,
			Summary:      summarize(e.EventType),
			OperatorName: e.OperatorName,
			At:           fromMillis(e.Timestamp),
		})
	}
	return timeline
}

// summarize turns TABLE_OPENED into "Table Opened".
func summarize(eventType string) string {
	if eventType == "" {
		return "Unknown Event"
	}
	words := strings.ReplaceAll(strings.ToLower(eventType), "_", " ")
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(words)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
