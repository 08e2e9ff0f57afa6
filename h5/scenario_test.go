package h5_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5/h5"
)

// Mirrors the classic create-group / attribute / reopen workflow: a
// float attribute written through one handle tree is read back through
// a fresh read-only open.
func TestScalarFloatAttributeReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.h5")

	f, err := h5.NewFile(path, h5.Truncate, nil)
	require.NoError(t, err)

	grp, err := f.CreateGroups("mygroup/abc")
	require.NoError(t, err)

	name, err := grp.Name()
	require.NoError(t, err)
	require.Equal(t, "/mygroup/abc", name)

	require.NoError(t, h5.WriteAttribute(grp, "myattr", float32(3.14)))
	require.NoError(t, grp.Close())
	require.NoError(t, f.Close())

	r, err := h5.Open(path, "r", nil)
	require.NoError(t, err)
	defer r.Close()

	grp, err = r.OpenGroup("/mygroup/abc")
	require.NoError(t, err)
	defer grp.Close()

	attr, err := grp.OpenAttribute("myattr")
	require.NoError(t, err)
	defer attr.Close()

	var got []float64
	require.NoError(t, attr.Read(&got))
	require.Len(t, got, 1)
	require.InDelta(t, 3.14, got[0], 5e-7)
}

func Test2DAttribute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.h5")

	f, err := h5.NewFile(path, h5.Truncate, nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("mygroup")
	require.NoError(t, err)
	defer grp.Close()

	want := make([]float64, 15)
	for n := range want {
		want[n] = 3.2 * float64(n)
	}

	space, err := h5.NewSimpleSpace(3, 5)
	require.NoError(t, err)
	defer space.Close()

	attr, err := grp.CreateAttribute("attr2d", h5.NativeDouble(), space)
	require.NoError(t, err)
	defer attr.Close()
	require.NoError(t, attr.Write(want))

	aspace, err := attr.Space()
	require.NoError(t, err)
	defer aspace.Close()
	dims, err := aspace.Dims()
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 5}, dims)

	var got []float64
	require.NoError(t, attr.Read(&got))
	require.Len(t, got, 15)
	for n := range want {
		require.InDelta(t, want[n], got[n], 1e-12, "element %d", n)
	}
}

func Test2DDatasetDowncastRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.h5")

	f, err := h5.NewFile(path, h5.Truncate, nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("mygroup")
	require.NoError(t, err)
	defer grp.Close()

	data := make([]float64, 15)
	for n := range data {
		data[n] = 3.2 * float64(n)
	}

	space, err := h5.NewSimpleSpace(3, 5)
	require.NoError(t, err)
	defer space.Close()

	ds, err := grp.CreateDataset("dset2d", h5.NativeDouble(), space, nil)
	require.NoError(t, err)
	defer ds.Close()
	require.NoError(t, ds.Write(data))

	// Read the doubles back as 32-bit floats.
	var got []float32
	require.NoError(t, ds.Read(&got))
	require.Len(t, got, 15)
	require.InDelta(t, 6.4, got[2], 1e-5)
}

func TestStringDatasetWithAttribute(t *testing.T) {
	const (
		text = "aéíñsoj"
		desc = "aéíñsoj description"
	)
	path := filepath.Join(t.TempDir(), "abc.h5")

	f, err := h5.NewFile(path, h5.Truncate, nil)
	require.NoError(t, err)

	grp, err := f.CreateGroup("mygroup")
	require.NoError(t, err)

	ds, err := h5.WriteDataset(grp, "mystr", text)
	require.NoError(t, err)
	require.NoError(t, h5.WriteAttribute(ds, "description", desc))
	require.NoError(t, ds.Close())
	require.NoError(t, grp.Close())
	require.NoError(t, f.Close())

	r, err := h5.Open(path, "r", nil)
	require.NoError(t, err)
	defer r.Close()

	grp, err = r.OpenGroup("mygroup")
	require.NoError(t, err)
	defer grp.Close()

	gotText, err := h5.ReadDataset[string](grp, "mystr")
	require.NoError(t, err)
	require.Equal(t, text, gotText)

	ds, err = grp.OpenDataset("mystr")
	require.NoError(t, err)
	defer ds.Close()

	gotDesc, err := h5.ReadAttribute[string](ds, "description")
	require.NoError(t, err)
	require.Equal(t, desc, gotDesc)
}

func TestCreateGroupsIdempotent(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	// None of the segments exist yet.
	g1, err := f.CreateGroups("a/b/c")
	require.NoError(t, err)
	name, err := g1.Name()
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", name)
	require.NoError(t, g1.Close())

	// All segments exist.
	g2, err := f.CreateGroups("a/b/c")
	require.NoError(t, err)
	name, err = g2.Name()
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", name)
	require.NoError(t, g2.Close())

	// Some segments exist.
	g3, err := f.CreateGroups("a/b/d/e")
	require.NoError(t, err)
	name, err = g3.Name()
	require.NoError(t, err)
	require.Equal(t, "/a/b/d/e", name)
	require.NoError(t, g3.Close())

	grp, err := f.OpenGroup("a/b")
	require.NoError(t, err)
	defer grp.Close()
	members, err := grp.Members()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"c", "d"}, members)
}

func TestSoftLink(t *testing.T) {
	path := tempFile(t)
	f, err := h5.CreateFile(path, nil)
	require.NoError(t, err)

	grp, err := f.CreateGroup("real")
	require.NoError(t, err)

	ds, err := h5.WriteDataset(grp, "data", []int32{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, grp.Close())

	require.NoError(t, f.CreateSoftLink("/real", "alias"))
	require.NoError(t, f.Close())

	r, err := h5.Open(path, "r", nil)
	require.NoError(t, err)
	defer r.Close()

	ok, err := r.Exists("alias")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := h5.ReadDataset[[]int32](r, "alias/data")
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, got)
}

func TestDanglingSoftLink(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.CreateSoftLink("/nowhere", "dangling"))

	ok, err := f.Exists("dangling")
	require.NoError(t, err)
	require.False(t, ok, "dangling soft links do not resolve")
}

func TestParentAndObjectInfo(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroups("outer/inner")
	require.NoError(t, err)
	defer grp.Close()

	parent, err := grp.Parent()
	require.NoError(t, err)
	defer parent.Close()

	name, err := parent.Name()
	require.NoError(t, err)
	require.Equal(t, "/outer", name)

	// The root group is its own parent.
	root, err := parent.Parent()
	require.NoError(t, err)
	rootName, err := root.Name()
	require.NoError(t, err)
	require.Equal(t, "/", rootName)
	require.NoError(t, root.Close())

	require.NoError(t, h5.WriteAttribute(grp, "tag", int32(7)))
	info, err := grp.Info()
	require.NoError(t, err)
	require.Equal(t, h5.TypeGroup, info.Type)
	require.Equal(t, 1, info.NumAttrs)
	require.Equal(t, 1, info.RefCount)
}

func TestIsGroupClassification(t *testing.T) {
	f, err := h5.CreateFile(tempFile(t), nil)
	require.NoError(t, err)
	defer f.Close()

	grp, err := f.CreateGroup("grp")
	require.NoError(t, err)
	require.NoError(t, grp.Close())

	ds, err := h5.WriteDataset(f, "data", []int32{1, 2})
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ok, err := f.IsGroup("grp")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.IsGroup("data")
	require.NoError(t, err)
	require.False(t, ok)

	// Missing paths are a plain false, not an error.
	ok, err = f.IsGroup("no/such/path")
	require.NoError(t, err)
	require.False(t, ok)

	// So are dangling soft links.
	require.NoError(t, f.CreateSoftLink("/nowhere", "dangling"))
	ok, err = f.IsGroup("dangling")
	require.NoError(t, err)
	require.False(t, ok)
}
