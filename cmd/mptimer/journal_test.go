package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

func TestReadObservationsSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"seq":0,"now_ns":1000000000,"resource_value":100,"role":25,"in_combat":true}`,
		`not json`,
		`{"seq":1,"now_ns":500000000,"resource_value":100,"role":25}`,
		``,
		`{"seq":2,"now_ns":2000000000,"resource_value":300,"role":25,"true_tick_ns":1900000000}`,
	}, "\n")

	observations, skipped, err := readObservations(strings.NewReader(input), "test.jsonl")
	require.NoError(t, err)
	require.Len(t, observations, 2)

	assert.Equal(t, time.Second, observations[0].Now())
	assert.True(t, observations[0].InCombat)
	tt, ok := observations[1].TrueTick()
	assert.True(t, ok)
	assert.Equal(t, 1900*time.Millisecond, tt)

	require.True(t, skipped.HasErrors())
	require.Len(t, skipped.Errors, 2)
	for _, e := range skipped.Errors {
		assert.Equal(t, mperrors.ErrorTypeInput, e.Type)
		assert.Equal(t, "test.jsonl", e.Path)
	}
	assert.Equal(t, 2, skipped.Errors[0].Context["line"])
	assert.Equal(t, 3, skipped.Errors[1].Context["line"])
	assert.Contains(t, skipped.Errors[1].Error(), "backwards")
}

func TestExportedJournalReadsBack(t *testing.T) {
	sample := timer.Sample{
		Now:           1500 * time.Millisecond,
		ResourceValue: 4200,
		Status:        timer.StatusFlags{RegenFavorable: true, Accelerant: true},
		Conditions:    visibility.Conditions{Role: visibility.SupportedRole, InCombat: true, HostileTarget: true},
	}
	written := []*state.Observation{
		state.NewObservation(0, sample, true, time.Second),
		state.NewObservation(1, timer.Sample{Now: 2 * time.Second, ResourceValue: 4300}, false, -1),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, obs := range written {
		require.NoError(t, writeObservation(enc, obs))
	}

	read, skipped, err := readObservations(&buf, "export")
	require.NoError(t, err)
	assert.False(t, skipped.HasErrors())
	require.Len(t, read, 2)

	assert.Equal(t, sample, read[0].Sample())
	assert.True(t, read[0].ContextChanged)
	_, ok := read[1].TrueTick()
	assert.False(t, ok)
}

func TestReadObservationsFileMissing(t *testing.T) {
	_, _, err := readObservationsFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.True(t, mperrors.IsType(err, mperrors.ErrorTypeStorage))
}

func TestIsFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, isFile(dir))
	assert.False(t, isFile(filepath.Join(dir, "nope")))
	assert.False(t, isFile("3f2a"))
}
