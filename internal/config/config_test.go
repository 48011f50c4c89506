package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8*time.Second, cfg.VisionTimeout)
	assert.Equal(t, 5*time.Second, cfg.EnsembleTimeout)
	assert.Equal(t, 1024, cfg.VisionMaxSide)
	assert.Equal(t, 0.3, cfg.DedupIoU)
	assert.Equal(t, 0.4, cfg.MinConfidence)
	assert.Equal(t, 8, cfg.MaxCandidates)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Positive(t, cfg.Workers)
	assert.False(t, cfg.VisionEnabled())
}

func TestFromLookup(t *testing.T) {
	cfg, err := FromLookup(lookupMap(map[string]string{
		"CARD_DETECT_VISION_URL":       "https://vision.example.com",
		"CARD_DETECT_VISION_API_KEY":   "secret",
		"CARD_DETECT_VISION_TIMEOUT":   "750ms",
		"CARD_DETECT_VISION_MAX_SIDE":  "512",
		"CARD_DETECT_ENSEMBLE_TIMEOUT": "2s",
		"CARD_DETECT_WORKERS":          " 3 ",
		"CARD_DETECT_DEDUP_IOU":        "0.5",
		"CARD_DETECT_MIN_CONFIDENCE":   "0.25",
		"CARD_DETECT_MAX_CANDIDATES":   "4",
		"CARD_DETECT_LOG_LEVEL":        "DEBUG",
		"UNRELATED":                    "ignored",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.VisionEnabled())
	assert.Equal(t, "https://vision.example.com", cfg.VisionURL)
	assert.Equal(t, "secret", cfg.VisionAPIKey)
	assert.Equal(t, 750*time.Millisecond, cfg.VisionTimeout)
	assert.Equal(t, 512, cfg.VisionMaxSide)
	assert.Equal(t, 2*time.Second, cfg.EnsembleTimeout)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 0.5, cfg.DedupIoU)
	assert.Equal(t, 0.25, cfg.MinConfidence)
	assert.Equal(t, 4, cfg.MaxCandidates)
	assert.Equal(t, "debug", cfg.LogLevel)

	cb := cfg.Combiner()
	assert.Equal(t, 0.5, cb.DedupIoU)
	assert.Equal(t, 0.25, cb.MinConfidence)
	assert.Equal(t, 4, cb.MaxCandidates)
}

func TestFromLookup_EmptyValuesKeepDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupMap(map[string]string{
		"CARD_DETECT_WORKERS":   "",
		"CARD_DETECT_LOG_LEVEL": "   ",
	}))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestFromLookup_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "CARD_DETECT_VISION_TIMEOUT", "soon"},
		{"bad int", "CARD_DETECT_WORKERS", "many"},
		{"bad float", "CARD_DETECT_MIN_CONFIDENCE", "high"},
		{"zero workers", "CARD_DETECT_WORKERS", "0"},
		{"negative timeout", "CARD_DETECT_ENSEMBLE_TIMEOUT", "-1s"},
		{"iou out of range", "CARD_DETECT_DEDUP_IOU", "1.5"},
		{"confidence out of range", "CARD_DETECT_MIN_CONFIDENCE", "2"},
		{"tiny upload", "CARD_DETECT_VISION_MAX_SIDE", "16"},
		{"no candidates", "CARD_DETECT_MAX_CANDIDATES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(lookupMap(map[string]string{tt.key: tt.value}))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CARD_DETECT_MAX_CANDIDATES", "5")
	t.Setenv("CARD_DETECT_VISION_URL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxCandidates)
	assert.False(t, cfg.VisionEnabled())
}
