package native

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func createTestFile(t *testing.T) (ID, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "native.h5")
	id, err := CreateFile(path, None)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	return id, path
}

func mustDecRef(t *testing.T, id ID) {
	t.Helper()
	if _, err := DecRef(id); err != nil {
		t.Fatalf("DecRef(%d): %v", id, err)
	}
}

func TestFileCreateAndProbe(t *testing.T) {
	fid, path := createTestFile(t)

	if !IsValid(fid) {
		t.Fatal("fresh file id is not valid")
	}
	if got := TypeOf(fid); got != KindFile {
		t.Fatalf("TypeOf = %v, want KindFile", got)
	}
	got, err := FilePath(fid)
	if err != nil || got != path {
		t.Fatalf("FilePath = %q, %v", got, err)
	}

	mustDecRef(t, fid)

	if IsValid(fid) {
		t.Fatal("released id is still valid")
	}
	if !IsHDF5(path) {
		t.Fatal("written file does not carry the HDF5 signature")
	}
}

func TestRefCounting(t *testing.T) {
	fid, _ := createTestFile(t)

	if n, err := RefCount(fid); err != nil || n != 1 {
		t.Fatalf("RefCount = %d, %v; want 1", n, err)
	}
	if n, err := IncRef(fid); err != nil || n != 2 {
		t.Fatalf("IncRef = %d, %v; want 2", n, err)
	}
	if n, err := DecRef(fid); err != nil || n != 1 {
		t.Fatalf("DecRef = %d, %v; want 1", n, err)
	}
	mustDecRef(t, fid)

	if _, err := DecRef(fid); err == nil {
		t.Fatal("DecRef on a dead id succeeded")
	}
}

func TestGroupTreeRoundTrip(t *testing.T) {
	fid, path := createTestFile(t)

	gid, err := CreateGroup(fid, "outer")
	if err != nil {
		t.Fatalf("CreateGroup outer: %v", err)
	}
	inner, err := CreateGroup(gid, "inner")
	if err != nil {
		t.Fatalf("CreateGroup inner: %v", err)
	}
	if p, _ := PathOf(inner); p != "/outer/inner" {
		t.Fatalf("PathOf inner = %q", p)
	}

	if _, err := CreateGroup(fid, "outer"); err == nil {
		t.Fatal("duplicate group name accepted")
	}

	mustDecRef(t, inner)
	mustDecRef(t, gid)
	mustDecRef(t, fid)

	fid, err = OpenFile(path, false, None)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer mustDecRef(t, fid)

	ok, err := Exists(fid, "outer/inner")
	if err != nil || !ok {
		t.Fatalf("Exists outer/inner = %v, %v", ok, err)
	}
	names, err := Members(fid)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"outer"}) {
		t.Fatalf("Members = %v", names)
	}
}

func TestSoftLinkResolution(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	gid, err := CreateGroup(fid, "target")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	mustDecRef(t, gid)

	if err := CreateSoftLink(fid, "/target", "alias"); err != nil {
		t.Fatalf("CreateSoftLink: %v", err)
	}

	aid, err := OpenGroup(fid, "alias")
	if err != nil {
		t.Fatalf("OpenGroup alias: %v", err)
	}
	if p, _ := PathOf(aid); p != "/alias" {
		t.Fatalf("PathOf alias = %q", p)
	}
	mustDecRef(t, aid)
}

func TestSoftLinkCycle(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	if err := CreateSoftLink(fid, "/b", "a"); err != nil {
		t.Fatalf("CreateSoftLink a: %v", err)
	}
	if err := CreateSoftLink(fid, "/a", "b"); err != nil {
		t.Fatalf("CreateSoftLink b: %v", err)
	}

	ok, err := Exists(fid, "a")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatal("cyclic soft link resolved")
	}
}

func TestContiguousSelectionWrite(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	space, err := NewSpace(SpaceSimple, []uint64{8}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	did, err := CreateDataset(fid, "d", NewFixedType(8, true), space, None)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	filespace, err := CopySpace(space)
	if err != nil {
		t.Fatalf("CopySpace: %v", err)
	}
	if err := SelectHyperslab(filespace, SelectSet, []uint64{2}, nil, []uint64{3}, nil); err != nil {
		t.Fatalf("SelectHyperslab: %v", err)
	}
	memspace, err := NewSpace(SpaceSimple, []uint64{3}, nil)
	if err != nil {
		t.Fatalf("NewSpace mem: %v", err)
	}

	if err := WriteDataset(did, []int64{10, 20, 30}, None, memspace, filespace, None); err != nil {
		t.Fatalf("WriteDataset: %v", err)
	}

	var got []int64
	if err := ReadDataset(did, &got, None, None, None, None); err != nil {
		t.Fatalf("ReadDataset: %v", err)
	}
	want := []int64{0, 0, 10, 20, 30, 0, 0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	mustDecRef(t, memspace)
	mustDecRef(t, filespace)
	mustDecRef(t, space)
	mustDecRef(t, did)
}

func TestFilteredSingleChunkRoundTrip(t *testing.T) {
	fid, path := createTestFile(t)

	space, err := NewSpace(SpaceSimple, []uint64{64}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	dcpl := NewPropList(PlistDatasetCreate)
	if err := SetChunk(dcpl, []uint64{64}); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}
	if err := SetShuffle(dcpl); err != nil {
		t.Fatalf("SetShuffle: %v", err)
	}
	if err := SetDeflate(dcpl, 6); err != nil {
		t.Fatalf("SetDeflate: %v", err)
	}
	if err := SetFletcher32(dcpl); err != nil {
		t.Fatalf("SetFletcher32: %v", err)
	}

	did, err := CreateDataset(fid, "compressed", NewFixedType(4, true), space, dcpl)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	want := make([]int32, 64)
	for i := range want {
		want[i] = int32(i * i)
	}
	if err := WriteDataset(did, want, None, None, None, None); err != nil {
		t.Fatalf("WriteDataset: %v", err)
	}

	mustDecRef(t, did)
	mustDecRef(t, dcpl)
	mustDecRef(t, space)
	mustDecRef(t, fid)

	fid, err = OpenFile(path, false, None)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer mustDecRef(t, fid)

	did, err = OpenDataset(fid, "compressed")
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer mustDecRef(t, did)

	var got []int32
	if err := ReadDataset(did, &got, None, None, None, None); err != nil {
		t.Fatalf("ReadDataset: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filtered round trip mismatch: got %v", got[:8])
	}

	// The creation list is reconstructable from the header.
	rdcpl, err := DatasetCreatePlist(did)
	if err != nil {
		t.Fatalf("DatasetCreatePlist: %v", err)
	}
	defer mustDecRef(t, rdcpl)
	if lc, _ := LayoutClassOf(rdcpl); lc != LayoutChunked {
		t.Fatalf("layout = %v, want chunked", lc)
	}
	chunk, err := ChunkDims(rdcpl)
	if err != nil || !reflect.DeepEqual(chunk, []uint64{64}) {
		t.Fatalf("ChunkDims = %v, %v", chunk, err)
	}
}

func TestMultiChunkRoundTrip(t *testing.T) {
	fid, path := createTestFile(t)

	space, err := NewSpace(SpaceSimple, []uint64{10}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	dcpl := NewPropList(PlistDatasetCreate)
	if err := SetChunk(dcpl, []uint64{4}); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}

	did, err := CreateDataset(fid, "chunked", NewFixedType(4, true), space, dcpl)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	want := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if err := WriteDataset(did, want, None, None, None, None); err != nil {
		t.Fatalf("WriteDataset: %v", err)
	}

	mustDecRef(t, did)
	mustDecRef(t, dcpl)
	mustDecRef(t, space)
	mustDecRef(t, fid)

	fid, err = OpenFile(path, false, None)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer mustDecRef(t, fid)

	did, err = OpenDataset(fid, "chunked")
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	defer mustDecRef(t, did)

	var got []int32
	if err := ReadDataset(did, &got, None, None, None, None); err != nil {
		t.Fatalf("ReadDataset: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("multi-chunk round trip mismatch: got %v", got)
	}
}

func TestCompactDatasetRoundTrip(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	space, err := NewSpace(SpaceSimple, []uint64{5}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	defer mustDecRef(t, space)

	dcpl := NewPropList(PlistDatasetCreate)
	defer mustDecRef(t, dcpl)
	if err := SetLayoutClass(dcpl, LayoutCompact); err != nil {
		t.Fatalf("SetLayoutClass: %v", err)
	}

	did, err := CreateDataset(fid, "compact", NewFixedType(2, false), space, dcpl)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	defer mustDecRef(t, did)

	want := []uint16{5, 4, 3, 2, 1}
	if err := WriteDataset(did, want, None, None, None, None); err != nil {
		t.Fatalf("WriteDataset: %v", err)
	}

	var got []uint16
	if err := ReadDataset(did, &got, None, None, None, None); err != nil {
		t.Fatalf("ReadDataset: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("compact round trip mismatch: got %v", got)
	}
}

func TestChunkedRewriteRejected(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	space, err := NewSpace(SpaceSimple, []uint64{8}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	defer mustDecRef(t, space)

	dcpl := NewPropList(PlistDatasetCreate)
	defer mustDecRef(t, dcpl)
	if err := SetChunk(dcpl, []uint64{8}); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}

	did, err := CreateDataset(fid, "once", NewFixedType(4, true), space, dcpl)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	defer mustDecRef(t, did)

	data := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := WriteDataset(did, data, None, None, None, None); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteDataset(did, data, None, None, None, None); err == nil {
		t.Fatal("second full write of chunked storage accepted")
	}
}

func TestPendingDatasetReadRejected(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	space, err := NewSpace(SpaceSimple, []uint64{4}, nil)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	defer mustDecRef(t, space)

	dcpl := NewPropList(PlistDatasetCreate)
	defer mustDecRef(t, dcpl)
	if err := SetChunk(dcpl, []uint64{4}); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}

	did, err := CreateDataset(fid, "pending", NewFixedType(4, true), space, dcpl)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	defer mustDecRef(t, did)

	var got []int32
	if err := ReadDataset(did, &got, None, None, None, None); err == nil {
		t.Fatal("read of an unwritten chunked dataset succeeded")
	}
}

func TestObjectCountCensus(t *testing.T) {
	fid, _ := createTestFile(t)

	gid, err := CreateGroup(fid, "g")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	n, err := ObjectCount(fid, KindAll)
	if err != nil || n != 2 {
		t.Fatalf("ObjectCount = %d, %v; want 2", n, err)
	}
	n, err = ObjectCount(fid, KindGroup)
	if err != nil || n != 1 {
		t.Fatalf("ObjectCount groups = %d, %v; want 1", n, err)
	}

	mustDecRef(t, gid)

	n, err = ObjectCount(fid, KindAll)
	if err != nil || n != 1 {
		t.Fatalf("ObjectCount after close = %d, %v; want 1", n, err)
	}
	mustDecRef(t, fid)
}

func TestExistsNotFoundClassification(t *testing.T) {
	fid, _ := createTestFile(t)
	defer mustDecRef(t, fid)

	ok, err := Exists(fid, "missing")
	if err != nil || ok {
		t.Fatalf("Exists missing = %v, %v", ok, err)
	}

	// The resolver marks unresolvable paths distinctly from I/O and
	// format errors; Exists turns only those into a clean false.
	e, err := lookup(fid)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	res := e.obj.(*fileObject).res

	_, rerr := res.resolveAddr("/missing", 0)
	var nf *notFoundError
	if !errors.As(rerr, &nf) {
		t.Fatalf("resolveAddr error %v is not a not-found error", rerr)
	}

	_, herr := res.findChild(1<<40, "/", "x", 0)
	if herr == nil {
		t.Fatal("expected header read failure")
	}
	if errors.As(herr, &nf) {
		t.Fatalf("header read failure %v classified as not-found", herr)
	}
}
