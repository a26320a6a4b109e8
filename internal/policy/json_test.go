package policy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

func TestConfigJSON_TimeThresholdInMilliseconds(t *testing.T) {
	cfg := DefaultConfig()
	hour := time.Hour
	cfg.CategorySettings[domain.CategoryBug] = Override{TimeThreshold: &hour}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, float64(86400000), raw["time_threshold"])
	assert.Equal(t, float64(65), raw["similarity_threshold"])

	bug := raw["category_settings"].(map[string]interface{})["bug"].(map[string]interface{})
	assert.Equal(t, float64(3600000), bug["time_threshold"])

	var decoded Config
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 24*time.Hour, decoded.TimeThreshold)
	assert.Equal(t, 65, decoded.SimilarityThreshold)
	require.NotNil(t, decoded.CategorySettings[domain.CategoryBug].TimeThreshold)
	assert.Equal(t, time.Hour, *decoded.CategorySettings[domain.CategoryBug].TimeThreshold)
}

func TestPatchJSON(t *testing.T) {
	t.Run("milliseconds in", func(t *testing.T) {
		var p Patch
		require.NoError(t, json.Unmarshal([]byte(`{"time_threshold": 1500, "similarity_threshold": 70}`), &p))

		require.NotNil(t, p.TimeThreshold)
		assert.Equal(t, 1500*time.Millisecond, *p.TimeThreshold)
		require.NotNil(t, p.SimilarityThreshold)
		assert.Equal(t, 70, *p.SimilarityThreshold)
	})

	t.Run("absent stays nil", func(t *testing.T) {
		var p Patch
		require.NoError(t, json.Unmarshal([]byte(`{"check_ip_address": false}`), &p))
		assert.Nil(t, p.TimeThreshold)
		require.NotNil(t, p.CheckIPAddress)
	})

	t.Run("round trip through the event bus", func(t *testing.T) {
		d := 2 * time.Hour
		threshold := 66
		b, err := json.Marshal(Patch{TimeThreshold: &d, SimilarityThreshold: &threshold})
		require.NoError(t, err)
		assert.JSONEq(t, `{"similarity_threshold": 66, "time_threshold": 7200000}`, string(b))

		var back Patch
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, d, *back.TimeThreshold)
		assert.Equal(t, 66, *back.SimilarityThreshold)
	})
}
