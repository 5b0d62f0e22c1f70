/*
store.go - Persistence interfaces for the invoice engine

PURPOSE:
  Defines the interface between the lifecycle and the database. The
  engine itself performs no locking; it relies on the store's optimistic
  version check to reject a write when someone else changed the document.

KEY INTERFACES:
  DocumentStore:   Document persistence + the report/inbox read queries
  MembershipStore: Approver level sets (read-only reference data)
  RefDocStore:     Reference document lines for seeding a fresh draft

DOC NUMBER ASSIGNMENT:
  Save assigns DocNo from the store's sequence the first time a document
  is persisted and returns it. The number is immutable afterwards; every
  later Save for the same document must carry it.

HISTORY:
  document history is append-only. Save accepts an optional history
  entry so the transition and its audit record commit atomically.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - engine/store/memory.go: In-memory store for testing

SEE ALSO:
  - lifecycle.go: The only writer
  - statement.go: Consumes ListPosted snapshots
*/
package engine

import (
	"context"
	"time"
)

// DocumentStore persists invoice request documents.
//
// Save enforces an optimistic concurrency check on Version: a write that
// carries a stale version fails with ErrConflict and changes nothing.
type DocumentStore interface {
	// Save persists the document, assigning DocNo from the sequence when
	// absent, and appends the history entry (if any) in the same unit of
	// work. Returns the document number.
	Save(ctx context.Context, doc *InvoiceRequest, entry *HistoryEntry) (string, error)

	// Get returns the current persisted document, or ErrNotFound.
	Get(ctx context.Context, docNo string) (*InvoiceRequest, error)

	// ListInFlight returns documents sitting with an approver tier
	// (SUBMITTED or SENTBACK at level >= 1), for inbox filtering.
	ListInFlight(ctx context.Context) ([]*InvoiceRequest, error)

	// ListWorklist returns the originator's editable documents for an
	// account: drafts plus send-backs returned to level 0.
	ListWorklist(ctx context.Context, acCode string) ([]*InvoiceRequest, error)

	// ListPosted returns non-draft documents for an account in document
	// number order, optionally bounded by doc date.
	ListPosted(ctx context.Context, acCode string, from, to time.Time) ([]*InvoiceRequest, error)

	// History returns the ordered history for a document.
	History(ctx context.Context, docNo string) ([]HistoryEntry, error)
}

// MembershipStore supplies the approver level sets.
type MembershipStore interface {
	Membership(ctx context.Context) (*Membership, error)
}

// RefDocStore exposes reference documents (e.g. purchase orders) so a
// fresh draft can pull in their lines. Read-only to the engine.
type RefDocStore interface {
	// RefLines returns the reference document's classification tag and
	// its lines, or ErrNotFound.
	RefLines(ctx context.Context, refDocNo string) (PdoType, []RefLine, error)
}
