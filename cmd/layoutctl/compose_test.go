package main

import (
	"testing"

	"github.com/hotrack/layoutctl/internal/persistence"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/stretchr/testify/require"
)

func TestApplyCalibration_OverlaysMatchingRecordsByIndex(t *testing.T) {
	defaults := []*turnout.Record{
		{Index: 1, Rate: 4000, Open: 600, Middle: 450, Close: 300, Min: 250, Max: 650, InitialCurrent: 300},
		{Index: 2, Rate: 4000, Open: 600, Middle: 450, Close: 300, Min: 250, Max: 650, InitialCurrent: 300},
	}
	loaded := []persistence.Record{
		{Turnout: 1, Rate: 5000, Open: 620, Middle: 460, Close: 310, MinPos: 260, MaxPos: 660, Pos: 400},
	}

	applyCalibration(defaults, loaded)

	require.Equal(t, 5000, defaults[0].Rate)
	require.Equal(t, 620, defaults[0].Open)
	require.Equal(t, 460, defaults[0].Middle)
	require.Equal(t, 310, defaults[0].Close)
	require.Equal(t, 260, defaults[0].Min)
	require.Equal(t, 660, defaults[0].Max)
	require.Equal(t, 400, defaults[0].InitialCurrent)

	// Turnout 2 has no matching saved record: defaults untouched.
	require.Equal(t, 4000, defaults[1].Rate)
	require.Equal(t, 300, defaults[1].InitialCurrent)
}

func TestApplyCalibration_EmptyLoadedLeavesDefaultsUntouched(t *testing.T) {
	defaults := []*turnout.Record{
		{Index: 1, Rate: 4000, Open: 600, Middle: 450, Close: 300, Min: 250, Max: 650, InitialCurrent: 300},
	}

	applyCalibration(defaults, nil)

	require.Equal(t, 4000, defaults[0].Rate)
	require.Equal(t, 300, defaults[0].InitialCurrent)
}
