package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MEMBERSHIP
// =============================================================================

func TestMembership_CanAct(t *testing.T) {
	m := NewMembership([]string{"alice", "bob"}, []string{"carol"})

	assert.True(t, m.CanAct("alice", LevelOne))
	assert.True(t, m.CanAct("carol", LevelTwo))

	// Membership at one tier grants nothing at the other
	assert.False(t, m.CanAct("alice", LevelTwo))
	assert.False(t, m.CanAct("carol", LevelOne))

	// Nobody acts at the originator level through membership
	assert.False(t, m.CanAct("alice", LevelOriginator))
	assert.False(t, m.CanAct("stranger", LevelOne))
}

func TestMembership_Levels(t *testing.T) {
	m := NewMembership([]string{"alice", "dual"}, []string{"carol", "dual"})

	assert.Equal(t, []FlowLevel{LevelOne}, m.Levels("alice"))
	assert.Equal(t, []FlowLevel{LevelTwo}, m.Levels("carol"))
	assert.Equal(t, []FlowLevel{LevelOne, LevelTwo}, m.Levels("dual"))
	assert.Empty(t, m.Levels("stranger"))
}

// =============================================================================
// CHAIN ADVANCEMENT
// =============================================================================

func TestChain_Advancement(t *testing.T) {
	// Every new submission starts at tier 1
	assert.Equal(t, LevelOne, InitialLevel())

	// Tier 1 advances to tier 2, which is final
	next, final := NextLevel(LevelOne)
	assert.Equal(t, LevelTwo, next)
	assert.False(t, final)

	_, final = NextLevel(LevelTwo)
	assert.True(t, final)
}

func TestSendBackTargets(t *testing.T) {
	assert.Equal(t, []FlowLevel{LevelOne, LevelOriginator}, SendBackTargets(LevelTwo))
	assert.Equal(t, []FlowLevel{LevelOriginator}, SendBackTargets(LevelOne))
	assert.Empty(t, SendBackTargets(LevelOriginator))
}

// =============================================================================
// INBOX VISIBILITY
// =============================================================================

func TestVisibleTo_ExactlyOneInboxPerDocument(t *testing.T) {
	// GIVEN one in-flight document per workflow position
	m := NewMembership([]string{"alice"}, []string{"carol"})
	docs := []*InvoiceRequest{
		{DocNo: "BSG-VIR-000001", LastAction: StateSubmitted, FlowLevel: LevelOne},
		{DocNo: "BSG-VIR-000002", LastAction: StateSubmitted, FlowLevel: LevelTwo},
		{DocNo: "BSG-VIR-000003", LastAction: StateDraft, FlowLevel: LevelOriginator},
		{DocNo: "BSG-VIR-000004", LastAction: StateApproved, FlowLevel: LevelTwo},
		{DocNo: "BSG-VIR-000005", LastAction: StateRejected, FlowLevel: LevelOriginator},
	}

	// WHEN filtering per approver
	aliceInbox := m.VisibleTo("alice", docs)
	carolInbox := m.VisibleTo("carol", docs)

	// THEN each approver sees only the document owned by their tier,
	// drafts and terminal documents appear in no inbox
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, "BSG-VIR-000001", aliceInbox[0].DocNo)
	require.Len(t, carolInbox, 1)
	assert.Equal(t, "BSG-VIR-000002", carolInbox[0].DocNo)
}

func TestVisibleTo_SentBackToLowerTier(t *testing.T) {
	// GIVEN a document sent back from tier 2 to tier 1
	m := NewMembership([]string{"alice"}, []string{"carol"})
	docs := []*InvoiceRequest{
		{DocNo: "BSG-VIR-000010", LastAction: StateSentBack, FlowLevel: LevelOne, SentBackFrom: LevelTwo},
	}

	// THEN it sits in the tier 1 inbox, not tier 2's
	assert.Len(t, m.VisibleTo("alice", docs), 1)
	assert.Empty(t, m.VisibleTo("carol", docs))
}
