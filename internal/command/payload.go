package command

import "github.com/shopspring/decimal"

// Type is the wire discriminator of a command payload. The strings are a
// contract with the backend and must not change.
type Type string

const (
	TypeOpenTable             Type = "OPEN_TABLE"
	TypeAddItems              Type = "ADD_ITEMS"
	TypeCompleteOrder         Type = "COMPLETE_ORDER"
	TypeVoidOrder             Type = "VOID_ORDER"
	TypeModifyItem            Type = "MODIFY_ITEM"
	TypeRemoveItem            Type = "REMOVE_ITEM"
	TypeCompItem              Type = "COMP_ITEM"
	TypeUncompItem            Type = "UNCOMP_ITEM"
	TypeAddPayment            Type = "ADD_PAYMENT"
	TypeCancelPayment         Type = "CANCEL_PAYMENT"
	TypeSplitByItems          Type = "SPLIT_BY_ITEMS"
	TypeSplitByAmount         Type = "SPLIT_BY_AMOUNT"
	TypeStartAASplit          Type = "START_AA_SPLIT"
	TypePayAASplit            Type = "PAY_AA_SPLIT"
	TypeApplyOrderDiscount    Type = "APPLY_ORDER_DISCOUNT"
	TypeApplyOrderSurcharge   Type = "APPLY_ORDER_SURCHARGE"
	TypeAddOrderNote          Type = "ADD_ORDER_NOTE"
	TypeToggleRuleSkip        Type = "TOGGLE_RULE_SKIP"
	TypeMoveOrder             Type = "MOVE_ORDER"
	TypeMergeOrders           Type = "MERGE_ORDERS"
	TypeUpdateOrderInfo       Type = "UPDATE_ORDER_INFO"
	TypeLinkMember            Type = "LINK_MEMBER"
	TypeUnlinkMember          Type = "UNLINK_MEMBER"
	TypeRedeemStamp           Type = "REDEEM_STAMP"
	TypeCancelStampRedemption Type = "CANCEL_STAMP_REDEMPTION"
)

// Payload is one variant of the command union. Only types in this package
// implement it.
//
// Fields that mean "no change" or "not applicable" are pointers without
// omitempty so they reach the backend as an explicit null.
type Payload interface {
	CommandType() Type
	isPayload()
}

// Authorizer records the supervisor who approved a restricted action.
type Authorizer struct {
	AuthorizerID   *string `json:"authorizer_id"`
	AuthorizerName *string `json:"authorizer_name"`
}

// SelectedOption is one attribute choice on an item (e.g. "Spicy: Extra").
type SelectedOption struct {
	AttributeID   string          `json:"attribute_id"`
	AttributeName string          `json:"attribute_name"`
	OptionIdx     int             `json:"option_idx"`
	OptionName    string          `json:"option_name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	Quantity      int32           `json:"quantity"`
}

// Specification is the chosen size/variant of a product.
type Specification struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ItemInput is a cart line sent with ADD_ITEMS.
type ItemInput struct {
	ProductID             string           `json:"product_id"`
	Name                  string           `json:"name"`
	Price                 decimal.Decimal  `json:"price"`
	OriginalPrice         *decimal.Decimal `json:"original_price"`
	Quantity              int32            `json:"quantity"`
	SelectedOptions       []SelectedOption `json:"selected_options"`
	SelectedSpecification *Specification   `json:"selected_specification"`
	ManualDiscountPercent *decimal.Decimal `json:"manual_discount_percent"`
	Note                  *string          `json:"note"`
}

// ItemChanges lists the fields MODIFY_ITEM may change. Nil leaves a field as is.
type ItemChanges struct {
	Price                 *decimal.Decimal  `json:"price"`
	Quantity              *int32            `json:"quantity"`
	ManualDiscountPercent *decimal.Decimal  `json:"manual_discount_percent"`
	Note                  *string           `json:"note"`
	SelectedOptions       *[]SelectedOption `json:"selected_options"`
	SelectedSpecification *Specification    `json:"selected_specification"`
}

// PaymentInput is a single tender.
type PaymentInput struct {
	Method   string           `json:"method"`
	Amount   decimal.Decimal  `json:"amount"`
	Tendered *decimal.Decimal `json:"tendered"`
	Note     *string          `json:"note"`
}

// SplitItem is one line paid in a SPLIT_BY_ITEMS payment.
type SplitItem struct {
	InstanceID string          `json:"instance_id"`
	Name       string          `json:"name"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// --- Order lifecycle ---

type OpenTable struct {
	TableID    *string `json:"table_id"`
	TableName  *string `json:"table_name"`
	ZoneID     *string `json:"zone_id"`
	ZoneName   *string `json:"zone_name"`
	GuestCount int32   `json:"guest_count"`
	IsRetail   bool    `json:"is_retail"`
}

type AddItems struct {
	OrderID string      `json:"order_id"`
	Items   []ItemInput `json:"items"`
}

type CompleteOrder struct {
	OrderID       string  `json:"order_id"`
	ReceiptNumber *string `json:"receipt_number"`
}

// Void types.
const (
	VoidTypeCancelled   = "CANCELLED"
	VoidTypeLossSettled = "LOSS_SETTLED"
)

type VoidOrder struct {
	OrderID    string           `json:"order_id"`
	VoidType   string           `json:"void_type"`
	LossReason *string          `json:"loss_reason"`
	LossAmount *decimal.Decimal `json:"loss_amount"`
	Note       *string          `json:"note"`
	Authorizer
}

// --- Item mutation ---

type ModifyItem struct {
	OrderID          string      `json:"order_id"`
	InstanceID       string      `json:"instance_id"`
	AffectedQuantity *int32      `json:"affected_quantity"`
	Changes          ItemChanges `json:"changes"`
	Authorizer
}

type RemoveItem struct {
	OrderID    string  `json:"order_id"`
	InstanceID string  `json:"instance_id"`
	Quantity   *int32  `json:"quantity"`
	Reason     *string `json:"reason"`
	Authorizer
}

type CompItem struct {
	OrderID    string `json:"order_id"`
	InstanceID string `json:"instance_id"`
	Quantity   int32  `json:"quantity"`
	Reason     string `json:"reason"`
	Authorizer
}

type UncompItem struct {
	OrderID    string `json:"order_id"`
	InstanceID string `json:"instance_id"`
	Authorizer
}

// --- Payments ---

type AddPayment struct {
	OrderID string       `json:"order_id"`
	Payment PaymentInput `json:"payment"`
}

type CancelPayment struct {
	OrderID   string  `json:"order_id"`
	PaymentID string  `json:"payment_id"`
	Reason    *string `json:"reason"`
	Authorizer
}

type SplitByItems struct {
	OrderID       string           `json:"order_id"`
	PaymentMethod string           `json:"payment_method"`
	Items         []SplitItem      `json:"items"`
	Tendered      *decimal.Decimal `json:"tendered"`
}

type SplitByAmount struct {
	OrderID       string           `json:"order_id"`
	SplitAmount   decimal.Decimal  `json:"split_amount"`
	PaymentMethod string           `json:"payment_method"`
	Tendered      *decimal.Decimal `json:"tendered"`
}

// StartAASplit locks the headcount for a per-guest split and pays the first shares.
type StartAASplit struct {
	OrderID       string           `json:"order_id"`
	TotalShares   int32            `json:"total_shares"`
	Shares        int32            `json:"shares"`
	PaymentMethod string           `json:"payment_method"`
	Tendered      *decimal.Decimal `json:"tendered"`
}

type PayAASplit struct {
	OrderID       string           `json:"order_id"`
	Shares        int32            `json:"shares"`
	PaymentMethod string           `json:"payment_method"`
	Tendered      *decimal.Decimal `json:"tendered"`
}

// --- Adjustments ---

// ApplyOrderDiscount sets or clears the order discount. Both fields nil clears it.
type ApplyOrderDiscount struct {
	OrderID         string           `json:"order_id"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DiscountFixed   *decimal.Decimal `json:"discount_fixed"`
	Authorizer
}

type ApplyOrderSurcharge struct {
	OrderID          string           `json:"order_id"`
	SurchargePercent *decimal.Decimal `json:"surcharge_percent"`
	SurchargeAmount  *decimal.Decimal `json:"surcharge_amount"`
	Authorizer
}

type AddOrderNote struct {
	OrderID string `json:"order_id"`
	Note    string `json:"note"`
}

type ToggleRuleSkip struct {
	OrderID string `json:"order_id"`
	RuleID  string `json:"rule_id"`
	Skipped bool   `json:"skipped"`
}

type MoveOrder struct {
	OrderID         string  `json:"order_id"`
	TargetTableID   string  `json:"target_table_id"`
	TargetTableName string  `json:"target_table_name"`
	TargetZoneID    *string `json:"target_zone_id"`
	TargetZoneName  *string `json:"target_zone_name"`
	Authorizer
}

type MergeOrders struct {
	SourceOrderID string `json:"source_order_id"`
	TargetOrderID string `json:"target_order_id"`
	Authorizer
}

type UpdateOrderInfo struct {
	OrderID      string  `json:"order_id"`
	GuestCount   *int32  `json:"guest_count"`
	TableName    *string `json:"table_name"`
	IsPrePayment *bool   `json:"is_pre_payment"`
}

// --- Membership ---

type LinkMember struct {
	OrderID  string `json:"order_id"`
	MemberID string `json:"member_id"`
}

type UnlinkMember struct {
	OrderID string `json:"order_id"`
}

type RedeemStamp struct {
	OrderID         string  `json:"order_id"`
	StampActivityID string  `json:"stamp_activity_id"`
	ProductID       *string `json:"product_id"`
}

type CancelStampRedemption struct {
	OrderID         string `json:"order_id"`
	StampActivityID string `json:"stamp_activity_id"`
}

func (OpenTable) CommandType() Type             { return TypeOpenTable }
func (AddItems) CommandType() Type              { return TypeAddItems }
func (CompleteOrder) CommandType() Type         { return TypeCompleteOrder }
func (VoidOrder) CommandType() Type             { return TypeVoidOrder }
func (ModifyItem) CommandType() Type            { return TypeModifyItem }
func (RemoveItem) CommandType() Type            { return TypeRemoveItem }
func (CompItem) CommandType() Type              { return TypeCompItem }
func (UncompItem) CommandType() Type            { return TypeUncompItem }
func (AddPayment) CommandType() Type            { return TypeAddPayment }
func (CancelPayment) CommandType() Type         { return TypeCancelPayment }
func (SplitByItems) CommandType() Type          { return TypeSplitByItems }
func (SplitByAmount) CommandType() Type         { return TypeSplitByAmount }
func (StartAASplit) CommandType() Type          { return TypeStartAASplit }
func (PayAASplit) CommandType() Type            { return TypePayAASplit }
func (ApplyOrderDiscount) CommandType() Type    { return TypeApplyOrderDiscount }
func (ApplyOrderSurcharge) CommandType() Type   { return TypeApplyOrderSurcharge }
func (AddOrderNote) CommandType() Type          { return TypeAddOrderNote }
func (ToggleRuleSkip) CommandType() Type        { return TypeToggleRuleSkip }
func (MoveOrder) CommandType() Type             { return TypeMoveOrder }
func (MergeOrders) CommandType() Type           { return TypeMergeOrders }
func (UpdateOrderInfo) CommandType() Type       { return TypeUpdateOrderInfo }
func (LinkMember) CommandType() Type            { return TypeLinkMember }
func (UnlinkMember) CommandType() Type          { return TypeUnlinkMember }
func (RedeemStamp) CommandType() Type           { return TypeRedeemStamp }
func (CancelStampRedemption) CommandType() Type { return TypeCancelStampRedemption }

func (OpenTable) isPayload()             {}
func (AddItems) isPayload()              {}
func (CompleteOrder) isPayload()         {}
func (VoidOrder) isPayload()             {}
func (ModifyItem) isPayload()            {}
func (RemoveItem) isPayload()            {}
func (CompItem) isPayload()              {}
func (UncompItem) isPayload()            {}
func (AddPayment) isPayload()            {}
func (CancelPayment) isPayload()         {}
func (SplitByItems) isPayload()          {}
func (SplitByAmount) isPayload()         {}
func (StartAASplit) isPayload()          {}
func (PayAASplit) isPayload()            {}
func (ApplyOrderDiscount) isPayload()    {}
func (ApplyOrderSurcharge) isPayload()   {}
func (AddOrderNote) isPayload()          {}
func (ToggleRuleSkip) isPayload()        {}
func (MoveOrder) isPayload()             {}
func (MergeOrders) isPayload()           {}
func (UpdateOrderInfo) isPayload()       {}
func (LinkMember) isPayload()            {}
func (UnlinkMember) isPayload()          {}
func (RedeemStamp) isPayload()           {}
func (CancelStampRedemption) isPayload() {}
