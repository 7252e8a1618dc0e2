package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/session"
)

// ErrUnknownCommandType is returned when decoding a payload whose type is not
// part of the command union.
var ErrUnknownCommandType = errors.New("unknown command type")

// Envelope wraps a payload with its idempotency key and operator attribution.
//
// CommandID is minted once per logical action. Resending the same action must
// reuse the same Envelope so the backend can recognise the redelivery.
type Envelope struct {
	CommandID    string
	Timestamp    int64 // unix millis
	OperatorID   string
	OperatorName string
	Payload      Payload
}

type wireEnvelope struct {
	CommandID    string          `json:"command_id"`
	Timestamp    int64           `json:"timestamp"`
	OperatorID   string          `json:"operator_id"`
	OperatorName string          `json:"operator_name"`
	Payload      json.RawMessage `json:"payload"`
}

// MarshalJSON writes the payload as a flat object tagged with "type".
func (e Envelope) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		CommandID:    e.CommandID,
		Timestamp:    e.Timestamp,
		OperatorID:   e.OperatorID,
		OperatorName: e.OperatorName,
		Payload:      payload,
	})
}

// UnmarshalJSON decodes an envelope, resolving the payload variant by its type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := DecodePayload(w.Payload)
	if err != nil {
		return err
	}
	*e = Envelope{
		CommandID:    w.CommandID,
		Timestamp:    w.Timestamp,
		OperatorID:   w.OperatorID,
		OperatorName: w.OperatorName,
		Payload:      p,
	}
	return nil
}

// MarshalPayload encodes p with its "type" discriminator merged in.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, errors.New("nil command payload")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.CommandType(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.CommandType(), err)
	}
	tag, _ := json.Marshal(p.CommandType())
	fields["type"] = tag
	return json.Marshal(fields)
}

// DecodePayload resolves raw into the variant named by its "type" field.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var (
		p   Payload
		err error
	)
	switch head.Type {
	case TypeOpenTable:
		p, err = decodeInto[OpenTable](raw)
	case TypeAddItems:
		p, err = decodeInto[AddItems](raw)
	case TypeCompleteOrder:
		p, err = decodeInto[CompleteOrder](raw)
	case TypeVoidOrder:
		p, err = decodeInto[VoidOrder](raw)
	case TypeModifyItem:
		p, err = decodeInto[ModifyItem](raw)
	case TypeRemoveItem:
		p, err = decodeInto[RemoveItem](raw)
	case TypeCompItem:
		p, err = decodeInto[CompItem](raw)
	case TypeUncompItem:
		p, err = decodeInto[UncompItem](raw)
	case TypeAddPayment:
		p, err = decodeInto[AddPayment](raw)
	case TypeCancelPayment:
		p, err = decodeInto[CancelPayment](raw)
	case TypeSplitByItems:
		p, err = decodeInto[SplitByItems](raw)
	case TypeSplitByAmount:
		p, err = decodeInto[SplitByAmount](raw)
	case TypeStartAASplit:
		p, err = decodeInto[StartAASplit](raw)
	case TypePayAASplit:
		p, err = decodeInto[PayAASplit](raw)
	case TypeApplyOrderDiscount:
		p, err = decodeInto[ApplyOrderDiscount](raw)
	case TypeApplyOrderSurcharge:
		p, err = decodeInto[ApplyOrderSurcharge](raw)
	case TypeAddOrderNote:
		p, err = decodeInto[AddOrderNote](raw)
	case TypeToggleRuleSkip:
		p, err = decodeInto[ToggleRuleSkip](raw)
	case TypeMoveOrder:
		p, err = decodeInto[MoveOrder](raw)
	case TypeMergeOrders:
		p, err = decodeInto[MergeOrders](raw)
	case TypeUpdateOrderInfo:
		p, err = decodeInto[UpdateOrderInfo](raw)
	case TypeLinkMember:
		p, err = decodeInto[LinkMember](raw)
	case TypeUnlinkMember:
		p, err = decodeInto[UnlinkMember](raw)
	case TypeRedeemStamp:
		p, err = decodeInto[RedeemStamp](raw)
	case TypeCancelStampRedemption:
		p, err = decodeInto[CancelStampRedemption](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommandType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return p, nil
}

func decodeInto[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Builder stamps payloads into envelopes.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder using the wall clock and NewCommandID.
func NewBuilder() *Builder {
	return &Builder{now: time.Now, newID: NewCommandID}
}

// Build wraps payload in a new envelope attributed to sess. A nil session is
// attributed to the unknown operator; Build never fails.
func (b *Builder) Build(sess *session.Session, payload Payload) Envelope {
	id, name := sess.Operator()
	return Envelope{
		CommandID:    b.newID(),
		Timestamp:    b.now().UnixMilli(),
		OperatorID:   id,
		OperatorName: name,
		Payload:      payload,
	}
}

// NewCommandID returns a random UUIDv4 from the crypto source. If that source
// fails it falls back to a math/rand v4-shaped id, which is only unique enough
// for the lifetime of one terminal session.
func NewCommandID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return pseudoUUID()
	}
	return id.String()
}

func pseudoUUID() string {
	var b uuid.UUID
	for i := range b {
		b[i] = byte(rand.Uint32())
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return b.String()
}
