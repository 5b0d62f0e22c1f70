/*
lifecycle.go - Invoice request state machine

PURPOSE:
  Owns the document's workflow state (LastAction + FlowLevel) and applies
  the five lifecycle actions behind one legality check, instead of the
  legality being re-implemented per screen as in the legacy system.

STATES AND ACTIONS:

            save-draft                submit
   (new) ─────────────▶ DRAFT ──────────────────▶ SUBMITTED (level 1)
                          ▲                           │  ▲
                          │                 approve   │  │ submit
                          │              ┌────────────┤  │
                          │              ▼            ▼  │
                          │       SUBMITTED (2)    SENTBACK
                          │              │
                          │              │ approve (final tier)
                          │              ▼
                          └─ reject ▶ REJECTED   APPROVED

  REJECTED and APPROVED are terminal. A SENTBACK document is editable by
  the originator again and re-enters the chain on its next submit.

GUARD RECOMPUTATION:
  Every action on a persisted document re-reads its current
  LastAction/FlowLevel from the store immediately before applying the
  transition. A stale in-memory copy is never trusted; the store's
  version check is the final authority under concurrent edits.

FAILURE SEMANTICS:
  Guard failures (validation, policy, authorization, routing) report a
  reason and never partially mutate the document. The persistence call is
  the single point of I/O: validation runs once, the store write may be
  retried as a whole.

SEE ALSO:
  - routing.go: Authorization and chain advancement
  - quantity.go: Line validation on draft/submit
  - store.go: Persistence contract
*/
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ACTION INPUT / RESULT
// =============================================================================

// ActionInput is the inbound action call: an intent, the acting identity,
// and the document payload. Draft/submit carry the full document; the
// reviewer actions only need DocNo plus remark / target level.
type ActionInput struct {
	Action      Action
	ActorID     string
	Document    *InvoiceRequest
	Remark      string
	TargetLevel *FlowLevel
}

// ActionResult reports the persisted outcome of a successful action.
type ActionResult struct {
	DocNo     string
	NewState  State
	FlowLevel FlowLevel
	Document  *InvoiceRequest
}

// PolicyError aggregates the quantity violations found in one document
// so the caller learns every refused line, not just the first.
type PolicyError struct {
	Violations []*QuantityViolation
}

func (e *PolicyError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.Error()
	}
	return strings.Join(lines, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

// =============================================================================
// LIFECYCLE SERVICE
// =============================================================================

// Lifecycle applies actions to invoice request documents. It is
// request-scoped and stateless between calls; all durable state lives in
// the stores.
type Lifecycle struct {
	Docs    DocumentStore
	Members MembershipStore

	// ResumeFromSentBack controls where a re-submitted SENTBACK document
	// re-enters the chain: the tier that issued the send-back (true) or
	// tier 1 (false, the default). See DESIGN.md.
	ResumeFromSentBack bool

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewLifecycle(docs DocumentStore, members MembershipStore) *Lifecycle {
	return &Lifecycle{Docs: docs, Members: members, Now: time.Now}
}

func (s *Lifecycle) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Apply dispatches one lifecycle action. On any error the document is
// unchanged, in memory and in the store.
func (s *Lifecycle) Apply(ctx context.Context, in ActionInput) (*ActionResult, error) {
	if in.ActorID == "" {
		return nil, &ValidationError{Field: "actorId", Message: "acting identity is required"}
	}

	switch in.Action {
	case ActionDraft:
		return s.saveDraft(ctx, in)
	case ActionSubmit:
		return s.submit(ctx, in)
	case ActionApprove:
		return s.approve(ctx, in)
	case ActionSendBack:
		return s.sendBack(ctx, in)
	case ActionReject:
		return s.reject(ctx, in)
	default:
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", in.Action)}
	}
}

// =============================================================================
// ORIGINATOR ACTIONS
// =============================================================================

// saveDraft persists the document as a draft. Lines with qty 0 are
// retained. Allowed for a fresh document or a re-save of DRAFT/SENTBACK.
func (s *Lifecycle) saveDraft(ctx context.Context, in ActionInput) (*ActionResult, error) {
	candidate, err := s.editableCandidate(ctx, in, ActionDraft)
	if err != nil {
		return nil, err
	}

	if violations := ValidateItems(candidate.Items); len(violations) > 0 {
		return nil, &PolicyError{Violations: violations}
	}

	candidate.LastAction = StateDraft
	candidate.FlowLevel = LevelOriginator
	candidate.EditUser = in.ActorID

	return s.persist(ctx, candidate, nil)
}

// submit validates the document and routes it to the first approver
// tier. Lines with qty 0 are dropped before persisting.
func (s *Lifecycle) submit(ctx context.Context, in ActionInput) (*ActionResult, error) {
	candidate, err := s.editableCandidate(ctx, in, ActionSubmit)
	if err != nil {
		return nil, err
	}

	if candidate.RefDocNo == "" {
		return nil, &ValidationError{Field: "refDocNo", Message: "reference document is required"}
	}
	if strings.TrimSpace(candidate.InvoiceNumber) == "" {
		return nil, &ValidationError{Field: "invoiceNumber", Message: "invoice number is required"}
	}
	if violations := ValidateItems(candidate.Items); len(violations) > 0 {
		return nil, &PolicyError{Violations: violations}
	}

	kept := candidate.Items[:0:0]
	for _, item := range candidate.Items {
		if item.Qty != 0 {
			kept = append(kept, item)
		}
	}
	candidate.Items = kept

	level := InitialLevel()
	if s.ResumeFromSentBack && candidate.LastAction == StateSentBack && candidate.SentBackFrom > LevelOriginator {
		level = candidate.SentBackFrom
	}

	candidate.LastAction = StateSubmitted
	candidate.FlowLevel = level
	candidate.EditUser = in.ActorID

	return s.persist(ctx, candidate, nil)
}

// editableCandidate resolves the document an originator action works on.
// For a persisted document it re-reads the stored copy, checks that the
// current state still allows editing, and re-applies the immutable
// reference snapshot (OriginalQty, PdoType) over the payload's lines.
func (s *Lifecycle) editableCandidate(ctx context.Context, in ActionInput, action Action) (*InvoiceRequest, error) {
	if in.Document == nil {
		return nil, &ValidationError{Field: "document", Message: "document payload is required"}
	}

	candidate := in.Document.Clone()
	if candidate.DocNo == "" {
		return candidate, nil
	}

	current, err := s.Docs.Get(ctx, candidate.DocNo)
	if err != nil {
		return nil, err
	}
	if current.LastAction != StateDraft && current.LastAction != StateSentBack {
		return nil, &TransitionError{Action: action, State: current.LastAction}
	}

	snapshot := make(map[int]LineItem, len(current.Items))
	for _, item := range current.Items {
		snapshot[item.SerialNo] = item
	}
	for i, item := range candidate.Items {
		if orig, ok := snapshot[item.SerialNo]; ok {
			candidate.Items[i].OriginalQty = orig.OriginalQty
			candidate.Items[i].PdoType = orig.PdoType
		}
	}

	candidate.LastAction = current.LastAction
	candidate.SentBackFrom = current.SentBackFrom
	candidate.History = current.History
	candidate.Version = current.Version
	return candidate, nil
}

// =============================================================================
// REVIEWER ACTIONS
// =============================================================================

// approve advances the document one tier, or finalizes it when the
// acting tier is the last one configured.
func (s *Lifecycle) approve(ctx context.Context, in ActionInput) (*ActionResult, error) {
	current, err := s.actionableCurrent(ctx, in, ActionApprove)
	if err != nil {
		return nil, err
	}

	candidate := current.Clone()
	next, final := NextLevel(current.FlowLevel)
	if final {
		candidate.LastAction = StateApproved
	} else {
		candidate.LastAction = StateSubmitted
		candidate.FlowLevel = next
	}

	return s.persist(ctx, candidate, nil)
}

// sendBack returns the document to a strictly lower tier with a recorded
// remark. The target may be any level below the current one, including 0
// (back to the originator).
func (s *Lifecycle) sendBack(ctx context.Context, in ActionInput) (*ActionResult, error) {
	current, err := s.actionableCurrent(ctx, in, ActionSendBack)
	if err != nil {
		return nil, err
	}
	if in.TargetLevel == nil {
		return nil, &ValidationError{Field: "targetLevel", Message: "send-back target level is required"}
	}
	target := *in.TargetLevel
	if target < LevelOriginator || target >= current.FlowLevel {
		return nil, &RoutingError{Current: current.FlowLevel, Target: target}
	}

	candidate := current.Clone()
	candidate.LastAction = StateSentBack
	candidate.SentBackFrom = current.FlowLevel
	candidate.FlowLevel = target

	entry := s.historyEntry(current, StateSentBack, in, target)
	return s.persist(ctx, candidate, &entry)
}

// reject terminates the document. Requires a remark.
func (s *Lifecycle) reject(ctx context.Context, in ActionInput) (*ActionResult, error) {
	if strings.TrimSpace(in.Remark) == "" {
		return nil, &ValidationError{Field: "remark", Message: "rejection remark is required"}
	}

	current, err := s.actionableCurrent(ctx, in, ActionReject)
	if err != nil {
		return nil, err
	}

	candidate := current.Clone()
	candidate.LastAction = StateRejected
	candidate.FlowLevel = LevelOriginator

	entry := s.historyEntry(current, StateRejected, in, LevelOriginator)
	return s.persist(ctx, candidate, &entry)
}

// actionableCurrent re-reads the stored document and checks that the
// actor's membership matches its current flow level.
func (s *Lifecycle) actionableCurrent(ctx context.Context, in ActionInput, action Action) (*InvoiceRequest, error) {
	if in.Document == nil || in.Document.DocNo == "" {
		return nil, &ValidationError{Field: "docNo", Message: "document number is required"}
	}

	current, err := s.Docs.Get(ctx, in.Document.DocNo)
	if err != nil {
		return nil, err
	}
	if current.LastAction.Terminal() || current.LastAction == StateDraft {
		return nil, &TransitionError{Action: action, State: current.LastAction}
	}

	membership, err := s.Members.Membership(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "membership", Err: err}
	}
	if !membership.CanAct(in.ActorID, current.FlowLevel) {
		return nil, &AuthorizationError{Actor: in.ActorID, Level: current.FlowLevel}
	}
	return current, nil
}

func (s *Lifecycle) historyEntry(current *InvoiceRequest, action State, in ActionInput, target FlowLevel) HistoryEntry {
	return HistoryEntry{
		ID:        uuid.NewString(),
		DocNo:     current.DocNo,
		Action:    action,
		Remark:    in.Remark,
		Actor:     in.ActorID,
		FromLevel: current.FlowLevel,
		ToLevel:   target,
		At:        s.now(),
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist is the single I/O point of every action. Validation has
// already run; a failure here leaves the caller's document unchanged and
// is retryable as a whole.
func (s *Lifecycle) persist(ctx context.Context, candidate *InvoiceRequest, entry *HistoryEntry) (*ActionResult, error) {
	docNo, err := s.Docs.Save(ctx, candidate, entry)
	if err != nil {
		return nil, &PersistenceError{Op: "save", Err: err}
	}

	candidate.DocNo = docNo
	candidate.Version++
	if entry != nil {
		e := *entry
		e.DocNo = docNo
		candidate.History = append(candidate.History, e)
	}

	return &ActionResult{
		DocNo:     docNo,
		NewState:  candidate.LastAction,
		FlowLevel: candidate.FlowLevel,
		Document:  candidate,
	}, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Inbox returns the documents the identity can currently act on. Each
// in-flight document lands in exactly one approver's inbox.
func (s *Lifecycle) Inbox(ctx context.Context, identity string) ([]*InvoiceRequest, error) {
	membership, err := s.Members.Membership(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "membership", Err: err}
	}
	docs, err := s.Docs.ListInFlight(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return membership.VisibleTo(identity, docs), nil
}

// SendBackLevels returns the legal send-back targets for a document, or
// an authorization error if the actor cannot act on it.
func (s *Lifecycle) SendBackLevels(ctx context.Context, docNo, actorID string) ([]FlowLevel, error) {
	current, err := s.actionableCurrent(ctx, ActionInput{ActorID: actorID, Document: &InvoiceRequest{DocNo: docNo}}, ActionSendBack)
	if err != nil {
		return nil, err
	}
	return SendBackTargets(current.FlowLevel), nil
}
