package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTime(t *testing.T) {
	got, ok := NormalizeTime("08:30")
	require.True(t, ok)
	require.Equal(t, "08:30:00", got)

	got, ok = NormalizeTime("23:59:59")
	require.True(t, ok)
	require.Equal(t, "23:59:59", got)

	_, ok = NormalizeTime("25:00")
	require.False(t, ok)
}

func TestNormalizeDate(t *testing.T) {
	_, ok := NormalizeDate("2024-02-30")
	require.False(t, ok)
	got, ok := NormalizeDate("2024-02-29")
	require.True(t, ok)
	require.Equal(t, "2024-02-29", got)
}

func TestStatusLess_TieBrokenByID(t *testing.T) {
	a := &Status{ID: 2, DisplayOrder: 1}
	b := &Status{ID: 1, DisplayOrder: 1}
	c := &Status{ID: 0, DisplayOrder: 2}
	require.True(t, StatusLess(b, a))
	require.True(t, StatusLess(a, c))
	require.False(t, StatusLess(c, b))
}

func TestPatchEmpty(t *testing.T) {
	require.True(t, PackagePatch{}.Empty())
	w := 1.5
	require.False(t, PackagePatch{PackageFields: PackageFields{WeightLB: &w}}.Empty())
	require.True(t, HistoryPatch{}.Empty())
	require.True(t, StatusPatch{}.Empty())
}
