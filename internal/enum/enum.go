package enum

// ── Order lifecycle (assigned by the backend) ──

const (
	OrderStatusActive    = "ACTIVE"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusVoided    = "VOIDED"
	OrderStatusMoved     = "MOVED"
	OrderStatusMerged    = "MERGED"
)

// IsTerminalStatus reports whether no further commands can change the order.
func IsTerminalStatus(s string) bool {
	switch s {
	case OrderStatusCompleted, OrderStatusVoided, OrderStatusMoved, OrderStatusMerged:
		return true
	}
	return false
}

// ── Payments ──

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodQRIS   = "QRIS"
	PaymentMethodWallet = "WALLET"
)

// ── Order events (timeline) ──

const (
	EventTableOpened           = "TABLE_OPENED"
	EventItemsAdded            = "ITEMS_ADDED"
	EventItemModified          = "ITEM_MODIFIED"
	EventItemRemoved           = "ITEM_REMOVED"
	EventItemComped            = "ITEM_COMPED"
	EventItemUncomped          = "ITEM_UNCOMPED"
	EventPaymentAdded          = "PAYMENT_ADDED"
	EventPaymentCancelled      = "PAYMENT_CANCELLED"
	EventItemsSplit            = "ITEMS_SPLIT"
	EventAmountSplit           = "AMOUNT_SPLIT"
	EventAASplitStarted        = "AA_SPLIT_STARTED"
	EventAASplitPaid           = "AA_SPLIT_PAID"
	EventOrderDiscountApplied  = "ORDER_DISCOUNT_APPLIED"
	EventOrderSurchargeApplied = "ORDER_SURCHARGE_APPLIED"
	EventOrderNoteAdded        = "ORDER_NOTE_ADDED"
	EventRuleSkipToggled       = "RULE_SKIP_TOGGLED"
	EventOrderMoved            = "ORDER_MOVED"
	EventOrderMerged           = "ORDER_MERGED"
	EventOrderInfoUpdated      = "ORDER_INFO_UPDATED"
	EventMemberLinked          = "MEMBER_LINKED"
	EventMemberUnlinked        = "MEMBER_UNLINKED"
	EventStampRedeemed         = "STAMP_REDEEMED"
	EventStampRedemptionCancel = "STAMP_REDEMPTION_CANCELLED"
	EventOrderCompleted        = "ORDER_COMPLETED"
	EventOrderVoided           = "ORDER_VOIDED"
)
