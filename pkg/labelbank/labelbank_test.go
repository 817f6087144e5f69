package labelbank_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/labelbank"
)

func TestAppendDimMismatchLeavesBankUnchanged(t *testing.T) {
	b := labelbank.New(4)
	require.NoError(t, b.AppendRows([][]float32{{1, 0, 0, 0}}))

	other := labelbank.New(3)
	require.NoError(t, other.AppendRows([][]float32{{1, 0, 0}}))

	err := b.Append(other)
	require.Error(t, err)
	require.Equal(t, 1, b.TermCount())
}

func TestAppendDimMismatchOnEmptyBankLeavesBankUnchanged(t *testing.T) {
	b := labelbank.New(4) // declared dim, zero rows
	require.Equal(t, 0, b.TermCount())

	other := labelbank.New(3)
	require.NoError(t, other.AppendRows([][]float32{{1, 0, 0}}))

	err := b.Append(other)
	require.Error(t, err)
	require.Equal(t, 0, b.TermCount())
	require.Equal(t, 4, b.Dim())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := labelbank.New(3)
	require.NoError(t, b.AppendRows([][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}))

	hash := [32]byte{1, 2, 3}
	binPath := filepath.Join(dir, "label_bank.bin")
	metaPath := filepath.Join(dir, "label_bank.meta")
	require.NoError(t, labelbank.Save(b, binPath, metaPath, hash))

	loaded, err := labelbank.Load(binPath, metaPath, hash)
	require.NoError(t, err)
	require.Equal(t, b.TermCount(), loaded.TermCount())
	require.Equal(t, b.Matrix(), loaded.Matrix())

	otherHash := [32]byte{9, 9, 9}
	_, err = labelbank.Load(binPath, metaPath, otherHash)
	require.ErrorIs(t, err, labelbank.ErrCacheStale)
}
