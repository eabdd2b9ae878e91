package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackInsights_Order(t *testing.T) {
	insights := FallbackInsights()

	require.Len(t, insights.Recommendations, 3)
	assert.Equal(t, RecommendationCritical, insights.Recommendations[0].Type)
	assert.Equal(t, RecommendationPolicy, insights.Recommendations[1].Type)
	assert.Equal(t, RecommendationOptimization, insights.Recommendations[2].Type)
	assert.NotEmpty(t, insights.Summary)
}

func TestParseInsights(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		insights, err := ParseInsights(`{"summary":"ok","recommendations":[{"title":"t","description":"d","type":"policy"}]}`)
		require.NoError(t, err)
		assert.Equal(t, "ok", insights.Summary)
		assert.Equal(t, RecommendationPolicy, insights.Recommendations[0].Type)
	})

	t.Run("fenced json with unknown type", func(t *testing.T) {
		content := "```json\n{\"summary\":\"s\",\"recommendations\":[{\"title\":\"t\",\"type\":\"urgent\"}]}\n```"
		insights, err := ParseInsights(content)
		require.NoError(t, err)
		assert.Equal(t, RecommendationOptimization, insights.Recommendations[0].Type)
	})

	t.Run("prose around json", func(t *testing.T) {
		insights, err := ParseInsights(`Here you go: {"summary":"s","recommendations":[]} thanks`)
		require.NoError(t, err)
		assert.Equal(t, "s", insights.Summary)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseInsights("no json here")
		assert.Error(t, err)

		_, err = ParseInsights("{}")
		assert.Error(t, err)

		_, err = ParseInsights("")
		assert.Error(t, err)
	})
}
