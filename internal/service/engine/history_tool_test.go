package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
	"github.com/shadowscope/shadow-ai-assessor/internal/testutil"
)

func TestHistoryTools(t *testing.T) {
	f := newFixture(t, sampleSource(), Config{LookbackDays: 30})
	ctx := testutil.TestContext(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.RunAssessment(ctx, settingsFor("acct-1"))
		require.NoError(t, err)
	}

	provider := NewHistoryTools(f.reports)

	defs, err := provider.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, RecentAssessmentsTool, defs[0].Name)

	assert.NotContains(t, defs[0].Parameters["properties"], "accountId")

	out, err := provider.Execute(WithAccount(ctx, "acct-1"), RecentAssessmentsTool, map[string]interface{}{
		"limit": float64(2),
	})
	require.NoError(t, err)

	result := out.(map[string]interface{})
	rows := result["assessments"].([]map[string]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, 81, rows[0]["score"])

	_, err = provider.Execute(ctx, RecentAssessmentsTool, map[string]interface{}{})
	assert.ErrorContains(t, err, "no account bound")

	_, err = provider.Execute(ctx, "other", nil)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
}

func TestHistoryTools_ThroughDispatcher(t *testing.T) {
	f := newFixture(t, sampleSource(), Config{LookbackDays: 30})
	ctx := testutil.TestContext(t)

	_, err := f.svc.RunAssessment(ctx, settingsFor("acct-1"))
	require.NoError(t, err)

	dispatcher := tools.NewDispatcher(tools.NewRegistry(NewHistoryTools(f.reports)), f.svc.logger, nil, tools.NewWeatherTool())

	out := dispatcher.Execute(WithAccount(ctx, "acct-1"), RecentAssessmentsTool, map[string]interface{}{})
	result, ok := out.(map[string]interface{})
	require.True(t, ok, "unexpected result %#v", out)
	assert.Len(t, result["assessments"], 1)
}

func TestHistoryTools_IgnoresForeignAccountArgument(t *testing.T) {
	f := newFixture(t, sampleSource(), Config{LookbackDays: 30})
	ctx := testutil.TestContext(t)

	for i := 0; i < 2; i++ {
		_, err := f.svc.RunAssessment(ctx, settingsFor("acct-1"))
		require.NoError(t, err)
	}
	_, err := f.svc.RunAssessment(ctx, settingsFor("acct-other"))
	require.NoError(t, err)

	out, err := NewHistoryTools(f.reports).Execute(WithAccount(ctx, "acct-other"), RecentAssessmentsTool, map[string]interface{}{
		"accountId": "acct-1",
	})
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "acct-other", result["accountId"])
	assert.Len(t, result["assessments"], 1)
}
