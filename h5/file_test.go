package h5_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5/h5"
)

func tempFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.h5")
}

func TestOpenModeMapping(t *testing.T) {
	path := tempFile(t)

	f, err := h5.Open(path, "w", nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = h5.Open(path, "r", nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = h5.Open(path, "r+", nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestOpenInvalidMode(t *testing.T) {
	_, err := h5.Open(tempFile(t), "a", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, h5.ErrInvalidArgument))

	var h5err *h5.Error
	require.True(t, errors.As(err, &h5err))
	require.Equal(t, "Invalid access flag: a", h5err.Detail)
}

func TestExclusiveCreate(t *testing.T) {
	path := tempFile(t)

	f, err := h5.NewFile(path, h5.Exclusive, nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = h5.NewFile(path, h5.Exclusive, nil)
	require.True(t, errors.Is(err, h5.ErrCreateFailed))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := h5.Open(filepath.Join(t.TempDir(), "absent.h5"), "r", nil)
	require.True(t, errors.Is(err, h5.ErrOpenFailed))
}

func TestIsHDF5(t *testing.T) {
	path := tempFile(t)
	require.False(t, h5.IsHDF5(path))

	f, err := h5.CreateFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.True(t, h5.IsHDF5(path))
}

func TestObjectCount(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("g")
	require.NoError(t, err)

	space, err := h5.NewSimpleSpace(4)
	require.NoError(t, err)
	defer space.Close()

	ds, err := f.CreateDataset("d", h5.NativeInt32(), space, nil)
	require.NoError(t, err)
	defer ds.Close()

	n, err := f.ObjectCount(h5.TypeAll)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, grp.Close())

	n, err = f.ObjectCount(h5.TypeAll)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = f.ObjectCount(h5.TypeDataset)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandleBalance(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	func() {
		grp, err := f.CreateGroup("scoped")
		require.NoError(t, err)
		defer grp.Close()

		n, err := f.ObjectCount(h5.TypeGroup)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}()

	n, err := f.ObjectCount(h5.TypeGroup)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRefCopySemantics(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("g")
	require.NoError(t, err)
	defer grp.Close()

	n, err := grp.RefCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	dup, err := grp.Ref()
	require.NoError(t, err)

	n, err = grp.RefCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, dup.Close())

	n, err = grp.RefCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The original handle keeps working after the copy is gone.
	_, err = grp.Members()
	require.NoError(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.False(t, f.IsValid())
	require.Zero(t, f.ID())
}

func TestFlush(t *testing.T) {
	path := tempFile(t)
	f, err := h5.CreateFile(path, nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("g")
	require.NoError(t, err)
	require.NoError(t, grp.Close())
	require.NoError(t, f.Flush(h5.FlushGlobal))

	// Flushed state is visible to an independent read-only open.
	r, err := h5.Open(path, "r", nil)
	require.NoError(t, err)
	defer r.Close()
	ok, err := r.Exists("g")
	require.NoError(t, err)
	require.True(t, ok)
}
