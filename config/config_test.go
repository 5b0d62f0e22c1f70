package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "invoices.db", cfg.DBPath)
	assert.Equal(t, "restart", cfg.SendBackResume)
	assert.False(t, cfg.ResumeFromSentBack())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_SendBackResumeLevel(t *testing.T) {
	t.Setenv("SENDBACK_RESUME", "level")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.ResumeFromSentBack())
}

func TestLoad_RejectsBadSendBackResume(t *testing.T) {
	t.Setenv("SENDBACK_RESUME", "sideways")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SENDBACK_RESUME")
}

func TestLoad_SplitsApproverLists(t *testing.T) {
	t.Setenv("APPROVER_LEVEL1", "alice, bob ,")
	t.Setenv("APPROVER_LEVEL2", "carol")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, cfg.ApproverLevel1)
	assert.Equal(t, []string{"carol"}, cfg.ApproverLevel2)
}
