package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	var sb strings.Builder
	formatRunsList(&sb, []model.Run{
		{
			ID:           "run-1",
			Decision:     model.DecisionGo,
			MatchedCount: 12,
			Metrics:      model.RunMetrics{RegistryTotal: 20, ListingTotal: 18},
			CreatedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
	})

	out := sb.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "DECISION")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "GO")
	assert.Contains(t, out, "2026-03-14 09:30:00")
}

func TestLoadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("9722103DF2892C\n\n# comment line\n  9722104DF2892C  \n"), 0o644))

	seeds, err := loadSeeds(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"9722103DF2892C", "9722104DF2892C"}, seeds)
}

func TestLoadSeedsMissingFile(t *testing.T) {
	_, err := loadSeeds(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seeds file")
}
