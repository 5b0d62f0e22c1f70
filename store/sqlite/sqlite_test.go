package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-engine/engine"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testDocument() *engine.InvoiceRequest {
	return &engine.InvoiceRequest{
		CompanyCode:   "BSG",
		DocType:       "VIR",
		DocDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RefDocNo:      "LPO-000042",
		PdoType:       "S",
		AcCode:        "V1001",
		InvoiceNumber: "INV-77",
		CurrCode:      "USD",
		ExRate:        decimal.NewFromFloat(3.675),
		LastAction:    engine.StateDraft,
		FlowLevel:     engine.LevelOriginator,
		Items: []engine.LineItem{
			{SerialNo: 1, Description: "widgets", OriginalQty: 10, PdoType: "S", Qty: 8,
				Price: decimal.NewFromFloat(12.5), TaxPercent1: decimal.NewFromInt(5),
				CurrCode: "USD", ExRate: decimal.NewFromFloat(3.675)},
			{SerialNo: 2, Description: "freight", OriginalQty: 1, PdoType: "S", Qty: 1,
				Price: decimal.NewFromInt(200), ExRate: decimal.NewFromInt(1)},
		},
	}
}

// =============================================================================
// SAVE / GET
// =============================================================================

func TestSave_AssignsSequentialDocNos(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// WHEN saving two fresh documents for the same company
	first, err := st.Save(ctx, testDocument(), nil)
	require.NoError(t, err)
	second, err := st.Save(ctx, testDocument(), nil)
	require.NoError(t, err)

	// THEN numbers come from the per-company sequence
	assert.Equal(t, "BSG-VIR-000001", first)
	assert.Equal(t, "BSG-VIR-000002", second)

	// AND a different company gets its own sequence
	other := testDocument()
	other.CompanyCode = "ACME"
	third, err := st.Save(ctx, other, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACME-VIR-000001", third)
}

func TestSaveGet_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	docNo, err := st.Save(ctx, doc, nil)
	require.NoError(t, err)

	loaded, err := st.Get(ctx, docNo)
	require.NoError(t, err)

	assert.Equal(t, docNo, loaded.DocNo)
	assert.Equal(t, "V1001", loaded.AcCode)
	assert.Equal(t, engine.StateDraft, loaded.LastAction)
	assert.Equal(t, 1, loaded.Version)
	assert.True(t, loaded.ExRate.Equal(decimal.NewFromFloat(3.675)))

	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "widgets", loaded.Items[0].Description)
	assert.EqualValues(t, 10, loaded.Items[0].OriginalQty)
	assert.True(t, loaded.Items[0].Price.Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, loaded.DocDate.Equal(doc.DocDate))
}

func TestGet_UnknownDocument(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Get(context.Background(), "BSG-VIR-999999")

	assert.ErrorIs(t, err, engine.ErrNotFound)
}

// =============================================================================
// OPTIMISTIC CONCURRENCY
// =============================================================================

func TestSave_VersionConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docNo, err := st.Save(ctx, testDocument(), nil)
	require.NoError(t, err)

	// GIVEN two readers holding version 1
	a, err := st.Get(ctx, docNo)
	require.NoError(t, err)
	b, err := st.Get(ctx, docNo)
	require.NoError(t, err)

	// WHEN the first writer commits
	a.Remarks = "first writer"
	_, err = st.Save(ctx, a, nil)
	require.NoError(t, err)

	// THEN the second writer's stale version is refused
	b.Remarks = "second writer"
	_, err = st.Save(ctx, b, nil)
	assert.ErrorIs(t, err, engine.ErrConflict)

	// AND the first write is what persisted
	current, err := st.Get(ctx, docNo)
	require.NoError(t, err)
	assert.Equal(t, "first writer", current.Remarks)
	assert.Equal(t, 2, current.Version)
}

func TestSave_UpdateUnknownDocNo(t *testing.T) {
	st := newTestStore(t)

	doc := testDocument()
	doc.DocNo = "BSG-VIR-424242"
	doc.Version = 1

	_, err := st.Save(context.Background(), doc, nil)

	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSave_ReplacesItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	docNo, err := st.Save(ctx, testDocument(), nil)
	require.NoError(t, err)

	// WHEN re-saving with one line dropped
	doc, err := st.Get(ctx, docNo)
	require.NoError(t, err)
	doc.Items = doc.Items[:1]
	_, err = st.Save(ctx, doc, nil)
	require.NoError(t, err)

	loaded, err := st.Get(ctx, docNo)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 1, loaded.Items[0].SerialNo)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_AppendsWithTransition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	doc.LastAction = engine.StateSubmitted
	doc.FlowLevel = engine.LevelOne
	docNo, err := st.Save(ctx, doc, nil)
	require.NoError(t, err)

	// WHEN two send-backs commit, each with its history entry
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for i, remark := range []string{"fix line 1", "still wrong"} {
		current, err := st.Get(ctx, docNo)
		require.NoError(t, err)
		current.LastAction = engine.StateSentBack
		current.FlowLevel = engine.LevelOriginator
		_, err = st.Save(ctx, current, &engine.HistoryEntry{
			ID:        remark,
			Action:    engine.StateSentBack,
			Remark:    remark,
			Actor:     "alice",
			FromLevel: engine.LevelOne,
			ToLevel:   engine.LevelOriginator,
			At:        base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	// THEN history is complete and in chronological order
	entries, err := st.History(ctx, docNo)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fix line 1", entries[0].Remark)
	assert.Equal(t, "still wrong", entries[1].Remark)
	assert.Equal(t, "fix line 1 - alice", entries[0].Display())

	// AND Get carries the same entries on the document
	loaded, err := st.Get(ctx, docNo)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 2)
}

// =============================================================================
// LISTS
// =============================================================================

func TestLists(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	save := func(state engine.State, level engine.FlowLevel, acCode string, docDate time.Time) string {
		doc := testDocument()
		doc.LastAction = state
		doc.FlowLevel = level
		doc.AcCode = acCode
		doc.DocDate = docDate
		docNo, err := st.Save(ctx, doc, nil)
		require.NoError(t, err)
		return docNo
	}

	d1 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	draft := save(engine.StateDraft, engine.LevelOriginator, "V1001", d1)
	submitted := save(engine.StateSubmitted, engine.LevelOne, "V1001", d2)
	sentBackToOrig := save(engine.StateSentBack, engine.LevelOriginator, "V1001", d2)
	approved := save(engine.StateApproved, engine.LevelTwo, "V1001", d3)
	otherAccount := save(engine.StateSubmitted, engine.LevelOne, "V2002", d2)

	// In-flight: documents owned by an approver tier, any account
	inFlight, err := st.ListInFlight(ctx)
	require.NoError(t, err)
	require.Len(t, inFlight, 2)
	assert.Equal(t, submitted, inFlight[0].DocNo)
	assert.Equal(t, otherAccount, inFlight[1].DocNo)

	// Worklist: the account's drafts plus send-backs parked at level 0
	worklist, err := st.ListWorklist(ctx, "V1001")
	require.NoError(t, err)
	require.Len(t, worklist, 2)
	assert.Equal(t, draft, worklist[0].DocNo)
	assert.Equal(t, sentBackToOrig, worklist[1].DocNo)

	// Posted: everything non-draft for the account
	posted, err := st.ListPosted(ctx, "V1001", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, posted, 3)

	// Posted with a date range excludes the approved March document
	posted, err = st.ListPosted(ctx, "V1001", d1, d2)
	require.NoError(t, err)
	require.Len(t, posted, 2)
	for _, doc := range posted {
		assert.NotEqual(t, approved, doc.DocNo)
	}
}

// =============================================================================
// MEMBERSHIP
// =============================================================================

func TestMembership_SeedAndLoad(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SeedMembership(ctx, []string{"alice", "bob"}, []string{"carol"}))
	// Seeding again must be a no-op, not an error
	require.NoError(t, st.SeedMembership(ctx, []string{"alice"}, []string{"carol"}))

	m, err := st.Membership(ctx)
	require.NoError(t, err)

	assert.True(t, m.CanAct("alice", engine.LevelOne))
	assert.True(t, m.CanAct("bob", engine.LevelOne))
	assert.True(t, m.CanAct("carol", engine.LevelTwo))
	assert.False(t, m.CanAct("alice", engine.LevelTwo))
}

// =============================================================================
// REFERENCE DOCUMENTS
// =============================================================================

func TestRefDocs_SeedAndLoad(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lines := []engine.RefLine{
		{SerialNo: 1, Description: "widgets", Qty: 10, Price: decimal.NewFromFloat(12.5), ExRate: decimal.NewFromInt(1)},
		{SerialNo: 2, Description: "freight", Qty: 1, Price: decimal.NewFromInt(200), ExRate: decimal.NewFromInt(1)},
	}
	require.NoError(t, st.SeedRefDoc(ctx, "LPO-000042", engine.PdoCopy, lines))

	pdo, loaded, err := st.RefLines(ctx, "LPO-000042")
	require.NoError(t, err)
	assert.Equal(t, engine.PdoCopy, pdo)
	require.Len(t, loaded, 2)
	assert.Equal(t, "widgets", loaded[0].Description)
	assert.True(t, loaded[0].Price.Equal(decimal.NewFromFloat(12.5)))

	_, _, err = st.RefLines(ctx, "LPO-999999")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

// =============================================================================
// LIFECYCLE INTEGRATION
// =============================================================================

func TestLifecycle_EndToEndAgainstSQLite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SeedMembership(ctx, []string{"alice"}, []string{"carol"}))

	lc := engine.NewLifecycle(st, st)

	// GIVEN a submitted document
	result, err := lc.Apply(ctx, engine.ActionInput{
		Action:   engine.ActionSubmit,
		ActorID:  "originator",
		Document: testDocument(),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.LevelOne, result.FlowLevel)

	// WHEN both tiers approve
	for _, actor := range []string{"alice", "carol"} {
		result, err = lc.Apply(ctx, engine.ActionInput{
			Action:   engine.ActionApprove,
			ActorID:  actor,
			Document: &engine.InvoiceRequest{DocNo: result.DocNo},
		})
		require.NoError(t, err)
	}

	// THEN the stored document is final
	assert.Equal(t, engine.StateApproved, result.NewState)
	stored, err := st.Get(ctx, result.DocNo)
	require.NoError(t, err)
	assert.Equal(t, engine.StateApproved, stored.LastAction)
	assert.Equal(t, 3, stored.Version)
}
