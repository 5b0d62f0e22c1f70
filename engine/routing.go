/*
routing.go - Approver routing table

PURPOSE:
  Resolves whether an identity may act on a document at its current flow
  level, and how a document moves through the two-tier approval chain.

  The legacy system answered "who can approve" by substituting a login id
  into an INSTR() lookup against a denormalized string of ids per level.
  Here membership is a plain set, decoupled from how it is stored.

CHAIN SHAPE:
  Exactly two tiers are configured. Every newly submitted document starts
  at tier 1; approval at tier 1 advances to tier 2; approval at tier 2 is
  final. A document is actionable by exactly one tier at a time, so it
  appears in exactly one approver inbox.

SEE ALSO:
  - lifecycle.go: Consults this table in every approve/send-back/reject guard
  - store.go: MembershipStore supplies the level sets
*/
package engine

// Membership holds the two named approver sets. Read-only reference data
// as far as the engine is concerned.
type Membership struct {
	Level1 map[string]struct{}
	Level2 map[string]struct{}
}

// NewMembership builds a Membership from login-id lists.
func NewMembership(level1, level2 []string) *Membership {
	m := &Membership{
		Level1: make(map[string]struct{}, len(level1)),
		Level2: make(map[string]struct{}, len(level2)),
	}
	for _, id := range level1 {
		m.Level1[id] = struct{}{}
	}
	for _, id := range level2 {
		m.Level2[id] = struct{}{}
	}
	return m
}

// CanAct reports whether identity may act on a document owned by the
// given flow level.
func (m *Membership) CanAct(identity string, level FlowLevel) bool {
	switch level {
	case LevelOne:
		_, ok := m.Level1[identity]
		return ok
	case LevelTwo:
		_, ok := m.Level2[identity]
		return ok
	default:
		return false
	}
}

// Levels returns the tiers the identity belongs to, lowest first.
func (m *Membership) Levels(identity string) []FlowLevel {
	var levels []FlowLevel
	if _, ok := m.Level1[identity]; ok {
		levels = append(levels, LevelOne)
	}
	if _, ok := m.Level2[identity]; ok {
		levels = append(levels, LevelTwo)
	}
	return levels
}

// InitialLevel is where every newly submitted document starts.
func InitialLevel() FlowLevel { return LevelOne }

// NextLevel returns the tier after current, or final=true when current
// is the last configured tier.
func NextLevel(current FlowLevel) (next FlowLevel, final bool) {
	if current >= MaxLevel {
		return current, true
	}
	return current + 1, false
}

// SendBackTargets returns the legal send-back destinations from the
// given tier: every level strictly below it, down to the originator.
func SendBackTargets(current FlowLevel) []FlowLevel {
	var targets []FlowLevel
	for lvl := current - 1; lvl >= LevelOriginator; lvl-- {
		targets = append(targets, lvl)
	}
	return targets
}

// VisibleTo filters documents down to the approver inbox for identity:
// in-flight documents whose current flow level the identity can act on.
// Because CanAct matches a single tier per document, no document appears
// in two inboxes at once.
func (m *Membership) VisibleTo(identity string, docs []*InvoiceRequest) []*InvoiceRequest {
	var visible []*InvoiceRequest
	for _, doc := range docs {
		if doc.LastAction == StateDraft || doc.LastAction.Terminal() {
			continue
		}
		if m.CanAct(identity, doc.FlowLevel) {
			visible = append(visible, doc)
		}
	}
	return visible
}
