/*
Package engine implements the vendor invoice lifecycle and reconciliation core.

PURPOSE:
  This package contains the domain types and algorithms for managing
  vendor invoice request documents: the draft → submission → multi-level
  approval state machine, the line-item quantity reconciliation policy,
  derived amount computation, approver routing, and statement projection.

KEY CONCEPTS IN THIS FILE (types.go):
  - InvoiceRequest: The aggregate root (header + line items)
  - LineItem: A line pulled from a reference document
  - State / FlowLevel: Workflow position (what happened + which tier owns it)
  - HistoryEntry: Immutable audit record for send-back/reject

DESIGN PRINCIPLES:
  1. Derived values are never stored: amounts are always recomputed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. History is append-only: entries are never edited or reordered
  4. docNo is immutable once assigned by the store

USAGE:
  doc := &engine.InvoiceRequest{
      CompanyCode: "BSG",
      RefDocNo:    "LPO-000042",
      Items:       engine.LinesFromRef(refLines),
  }

SEE ALSO:
  - lifecycle.go: State transitions and guards
  - amounts.go: Derived amount computation
  - quantity.go: Quantity reconciliation policy
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKFLOW STATE
// =============================================================================

// State is the document's last recorded workflow action.
type State string

const (
	StateDraft     State = "DRAFT"
	StateSubmitted State = "SUBMITTED"
	StateSentBack  State = "SENTBACK"
	StateRejected  State = "REJECTED"
	StateApproved  State = "APPROVED"
)

// Terminal reports whether no further transition is legal from this state.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// FlowLevel is the approval tier that currently owns a document.
// 0 = with the originator (unrouted), 1 and 2 = approver tiers.
type FlowLevel int

const (
	LevelOriginator FlowLevel = 0
	LevelOne        FlowLevel = 1
	LevelTwo        FlowLevel = 2

	// MaxLevel is the highest configured approver tier.
	MaxLevel FlowLevel = 2
)

// Action is a lifecycle intent submitted by a caller.
type Action string

const (
	ActionDraft    Action = "DRAFT"
	ActionSubmit   Action = "SUBMIT"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionSendBack Action = "SENTBACK"
)

// =============================================================================
// PDO TYPE - Classification copied from the reference document
// =============================================================================

// PdoType is the source-document classification tag. It decides whether a
// line's quantity may be increased beyond the originally referenced value.
type PdoType string

const (
	PdoCopy     PdoType = "P"
	PdoOverride PdoType = "Q"
)

// Open reports whether this classification allows the invoiced quantity
// to exceed the reference document's original quantity.
func (p PdoType) Open() bool {
	return p == PdoCopy || p == PdoOverride
}

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one line of an invoice request, sourced from a reference
// document. OriginalQty and PdoType are snapshots taken when the line was
// pulled in and never change afterwards; Qty is the only editable field.
// Amounts are derived, see amounts.go.
type LineItem struct {
	SerialNo    int
	Description string

	// Reference snapshot, immutable once set.
	OriginalQty int64
	PdoType     PdoType

	// Editable.
	Qty int64

	// Pricing inputs.
	Price       decimal.Decimal
	TaxPercent1 decimal.Decimal
	CurrCode    string
	ExRate      decimal.Decimal
}

// RefLine is a line on a reference document, used to seed a fresh draft.
type RefLine struct {
	SerialNo    int
	Description string
	Qty         int64
	Price       decimal.Decimal
	TaxPercent1 decimal.Decimal
	CurrCode    string
	ExRate      decimal.Decimal
}

// LinesFromRef builds draft line items from reference document lines.
// The reference quantity becomes the immutable OriginalQty snapshot and
// the owning document's pdo type is inherited by every line.
func LinesFromRef(refLines []RefLine, pdo PdoType) []LineItem {
	items := make([]LineItem, len(refLines))
	for i, rl := range refLines {
		items[i] = LineItem{
			SerialNo:    rl.SerialNo,
			Description: rl.Description,
			OriginalQty: rl.Qty,
			PdoType:     pdo,
			Qty:         rl.Qty,
			Price:       rl.Price,
			TaxPercent1: rl.TaxPercent1,
			CurrCode:    rl.CurrCode,
			ExRate:      rl.ExRate,
		}
	}
	return items
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryEntry records one send-back or reject transition. Append-only.
type HistoryEntry struct {
	ID        string
	DocNo     string
	Action    State
	Remark    string
	Actor     string
	FromLevel FlowLevel
	ToLevel   FlowLevel
	At        time.Time
}

// Display renders the entry in the "<remark> - <actor>" form shown in the
// send-back history view.
func (h HistoryEntry) Display() string {
	return fmt.Sprintf("%s - %s", h.Remark, h.Actor)
}

// =============================================================================
// INVOICE REQUEST - Aggregate root
// =============================================================================

// InvoiceRequest is a vendor invoice request document: header plus ordered
// line items. It is created in memory against a chosen reference document,
// becomes durable (gets a DocNo) on the first successful draft-or-submit,
// and is only ever mutated through lifecycle actions.
type InvoiceRequest struct {
	// Identity. DocNo is empty for a fresh draft and immutable once the
	// store assigns it.
	CompanyCode string
	DocNo       string
	DocType     string
	DocDate     time.Time

	// Linkage to the reference document.
	RefDocNo string
	PdoType  PdoType
	AcCode   string
	DivCode  string

	// Commercial fields.
	InvoiceNumber string
	InvoiceDate   string
	CurrCode      string
	ExRate        decimal.Decimal
	Remarks       string

	// Workflow.
	LastAction State
	FlowLevel  FlowLevel
	// SentBackFrom is the tier that issued the most recent send-back,
	// zero when the document has never been sent back. Used when the
	// lifecycle is configured to resume rather than restart the chain.
	SentBackFrom FlowLevel
	EditUser     string

	Items   []LineItem
	History []HistoryEntry

	// Version supports the store's optimistic concurrency check.
	Version int
}

// Clone returns a deep copy. Lifecycle actions mutate a clone and only
// adopt it after the store accepts the write, so a failed persist leaves
// the caller's document untouched.
func (d *InvoiceRequest) Clone() *InvoiceRequest {
	cp := *d
	cp.Items = append([]LineItem(nil), d.Items...)
	cp.History = append([]HistoryEntry(nil), d.History...)
	return &cp
}

// Posted reports whether the document participates in reports. Drafts do
// not; everything that has entered the workflow does.
func (d *InvoiceRequest) Posted() bool {
	return d.LastAction != "" && d.LastAction != StateDraft
}
