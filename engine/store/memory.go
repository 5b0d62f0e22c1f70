// Package store provides in-memory implementations of the engine's
// storage interfaces, used in tests and local development.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/invoice-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory DocumentStore / MembershipStore / RefDocStore
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	docs      map[string]*engine.InvoiceRequest
	history   map[string][]engine.HistoryEntry
	refDocs   map[string]refDoc
	level1    []string
	level2    []string
	nextDocNo int

	// FailSaves makes every Save fail, for persistence-error tests.
	FailSaves bool
}

type refDoc struct {
	pdo   engine.PdoType
	lines []engine.RefLine
}

func NewMemory() *Memory {
	return &Memory{
		docs:      make(map[string]*engine.InvoiceRequest),
		history:   make(map[string][]engine.HistoryEntry),
		refDocs:   make(map[string]refDoc),
		nextDocNo: 1,
	}
}

// SetMembership replaces the approver level sets.
func (m *Memory) SetMembership(level1, level2 []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level1 = append([]string(nil), level1...)
	m.level2 = append([]string(nil), level2...)
}

// SetRefDoc registers a reference document for draft seeding.
func (m *Memory) SetRefDoc(refDocNo string, pdo engine.PdoType, lines []engine.RefLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refDocs[refDocNo] = refDoc{pdo: pdo, lines: append([]engine.RefLine(nil), lines...)}
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

func (m *Memory) Save(_ context.Context, doc *engine.InvoiceRequest, entry *engine.HistoryEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaves {
		return "", fmt.Errorf("memory store: save disabled")
	}

	docNo := doc.DocNo
	if docNo == "" {
		docNo = fmt.Sprintf("%s-VIR-%06d", doc.CompanyCode, m.nextDocNo)
		m.nextDocNo++
	} else if existing, ok := m.docs[docNo]; ok {
		if existing.Version != doc.Version {
			return "", engine.ErrConflict
		}
	}

	stored := doc.Clone()
	stored.DocNo = docNo
	stored.Version = doc.Version + 1
	if entry != nil {
		e := *entry
		e.DocNo = docNo
		m.history[docNo] = append(m.history[docNo], e)
	}
	stored.History = append([]engine.HistoryEntry(nil), m.history[docNo]...)
	m.docs[docNo] = stored

	return docNo, nil
}

func (m *Memory) Get(_ context.Context, docNo string) (*engine.InvoiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[docNo]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) ListInFlight(_ context.Context) ([]*engine.InvoiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*engine.InvoiceRequest
	for _, doc := range m.docs {
		if doc.LastAction.Terminal() || doc.LastAction == engine.StateDraft {
			continue
		}
		if doc.FlowLevel >= engine.LevelOne {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListWorklist(_ context.Context, acCode string) ([]*engine.InvoiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*engine.InvoiceRequest
	for _, doc := range m.docs {
		if doc.AcCode != acCode {
			continue
		}
		editable := doc.LastAction == engine.StateDraft ||
			(doc.LastAction == engine.StateSentBack && doc.FlowLevel == engine.LevelOriginator)
		if editable {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListPosted(_ context.Context, acCode string, from, to time.Time) ([]*engine.InvoiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*engine.InvoiceRequest
	for _, doc := range m.docs {
		if doc.AcCode != acCode || !doc.Posted() {
			continue
		}
		if !from.IsZero() && doc.DocDate.Before(from) {
			continue
		}
		if !to.IsZero() && doc.DocDate.After(to) {
			continue
		}
		out = append(out, doc.Clone())
	}
	sortByDocNo(out)
	return out, nil
}

func (m *Memory) History(_ context.Context, docNo string) ([]engine.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.HistoryEntry(nil), m.history[docNo]...), nil
}

// =============================================================================
// MEMBERSHIP / REF DOC
// =============================================================================

func (m *Memory) Membership(_ context.Context) (*engine.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return engine.NewMembership(m.level1, m.level2), nil
}

func (m *Memory) RefLines(_ context.Context, refDocNo string) (engine.PdoType, []engine.RefLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rd, ok := m.refDocs[refDocNo]
	if !ok {
		return "", nil, engine.ErrNotFound
	}
	return rd.pdo, append([]engine.RefLine(nil), rd.lines...), nil
}

func sortByDocNo(docs []*engine.InvoiceRequest) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocNo < docs[j].DocNo })
}
