package native

import (
	"fmt"
	"os"
	"sync"

	"github.com/robert-malhotra/go-h5/internal/alloc"
	"github.com/robert-malhotra/go-h5/internal/binary"
	"github.com/robert-malhotra/go-h5/internal/object"
	"github.com/robert-malhotra/go-h5/internal/superblock"
	"github.com/robert-malhotra/go-h5/mpi"
)

// fileResource is the shared engine state behind one open file. Several
// registry entries (the file handle itself, plus groups, datasets and
// attributes opened from it) bind to the same resource; the os file is
// closed only when the last of them is released.
type fileResource struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	reader    *binary.Reader
	writer    *binary.Writer
	sb        *superblock.Superblock
	allocator *alloc.Allocator
	writable  bool
	users     int
	closed    bool
}

// shared holds resources opened under a communicator so every rank in
// an in-process group attaches to the same engine state.
var (
	sharedMu sync.Mutex
	shared   = map[string]*fileResource{}
)

func (r *fileResource) addUser() {
	r.mu.Lock()
	r.users++
	r.mu.Unlock()
}

// release drops one user; the last one out flushes and closes the file.
func (r *fileResource) release() error {
	r.mu.Lock()
	r.users--
	last := r.users == 0 && !r.closed
	if last {
		r.closed = true
	}
	r.mu.Unlock()

	if !last {
		return nil
	}

	sharedMu.Lock()
	if shared[r.path] == r {
		delete(shared, r.path)
	}
	sharedMu.Unlock()

	var err error
	if r.writable {
		err = r.flushLocked()
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// flush rewrites the superblock with the current EOF and syncs.
func (r *fileResource) flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("file %s is closed", r.path)
	}
	if !r.writable {
		return nil
	}
	return r.flushLocked()
}

func (r *fileResource) flushLocked() error {
	r.sb.EOFAddress = r.allocator.EOFAddr()
	if _, err := r.sb.Write(r.writer.At(0)); err != nil {
		return fmt.Errorf("rewriting superblock: %w", err)
	}
	return r.file.Sync()
}

func (r *fileResource) allocate(size int64) uint64 {
	if size < 0 {
		size = 0
	}
	return r.allocator.Alloc(uint64(size))
}

func (r *fileResource) requireWritable() error {
	if !r.writable {
		return fmt.Errorf("file %s is read-only", r.path)
	}
	return nil
}

// createFileResource truncates (or creates) path and writes a fresh
// superblock plus an empty root group header.
func createFileResource(path string) (*fileResource, error) {
	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	cfg := binary.DefaultConfig()
	writer := binary.NewWriter(osFile, cfg)
	reader := binary.NewReader(osFile, cfg)

	sb := superblock.NewSuperblock()
	sbSize := uint64(sb.Size())

	rootMessages := object.NewEmptyGroupHeader()
	headerSize := object.HeaderSizeWithMinChunk(writer, rootMessages, object.MinGroupChunkSize)

	sb.RootGroupAddress = sbSize
	sb.EOFAddress = sbSize + uint64(headerSize)

	if _, err := sb.Write(writer); err != nil {
		osFile.Close()
		return nil, fmt.Errorf("writing superblock: %w", err)
	}
	if _, err := object.WriteHeaderWithMinChunk(writer.At(int64(sbSize)), rootMessages, object.MinGroupChunkSize); err != nil {
		osFile.Close()
		return nil, fmt.Errorf("writing root group header: %w", err)
	}

	return &fileResource{
		path:      path,
		file:      osFile,
		reader:    reader,
		writer:    writer,
		sb:        sb,
		allocator: alloc.New(sb.EOFAddress),
		writable:  true,
	}, nil
}

// openFileResource opens an existing file, read-only or read-write.
func openFileResource(path string, readWrite bool) (*fileResource, error) {
	flag := os.O_RDONLY
	if readWrite {
		flag = os.O_RDWR
	}
	osFile, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	cfg := sb.ReaderConfig()
	res := &fileResource{
		path:     path,
		file:     osFile,
		reader:   binary.NewReader(osFile, cfg),
		sb:       sb,
		writable: readWrite,
	}
	if readWrite {
		res.writer = binary.NewWriter(osFile, cfg)
		res.allocator = alloc.New(sb.EOFAddress)
	}
	return res, nil
}

// fileObject is the registry object behind a file id. The communicator
// is per-handle: ranks of a parallel group share one resource but each
// carries its own comm.
type fileObject struct {
	res  *fileResource
	comm mpi.Comm
	info mpi.Info
}

func (f *fileObject) destroy() error { return nil }

// acquireResource obtains the engine resource for path under an
// optional communicator. Without a communicator the caller gets a
// private resource. With one, rank 0 performs the filesystem operation
// and the remaining ranks attach to the same resource after a barrier.
// The returned resource carries a temporary user hold which the caller
// must drop (via release) once its own registry binding exists.
func acquireResource(path string, comm mpi.Comm, open func() (*fileResource, error)) (*fileResource, error) {
	if comm == nil || comm.Size() == 1 {
		res, err := open()
		if err != nil {
			return nil, err
		}
		res.addUser()
		return res, nil
	}

	var res *fileResource
	var err error
	if comm.Rank() == 0 {
		res, err = open()
		if err == nil {
			res.addUser()
			sharedMu.Lock()
			shared[path] = res
			sharedMu.Unlock()
		}
	}
	comm.Barrier()
	if comm.Rank() != 0 {
		sharedMu.Lock()
		res = shared[path]
		sharedMu.Unlock()
		if res == nil {
			err = fmt.Errorf("parallel open of %s failed on rank 0", path)
		} else {
			res.addUser()
		}
	}
	// Hold every rank here so nobody can release the resource before
	// all ranks have taken their hold.
	comm.Barrier()
	return res, err
}

// adoptResource registers obj against res and drops the temporary hold
// taken by acquireResource.
func adoptResource(kind Kind, obj any, res *fileResource) ID {
	id := register(kind, obj, res)
	res.release() // registry binding now holds the resource
	return id
}

// CreateFile creates (truncating) an HDF5 file and returns a file id.
// fapl may be None or a file-access property list carrying an MPI
// communicator.
func CreateFile(path string, fapl ID) (ID, error) {
	comm, info, err := faplComm(fapl)
	if err != nil {
		return None, err
	}
	res, err := acquireResource(path, comm, func() (*fileResource, error) {
		return createFileResource(path)
	})
	if err != nil {
		return None, err
	}
	return adoptResource(KindFile, &fileObject{res: res, comm: comm, info: info}, res), nil
}

// CreateFileExclusive creates a file, failing if it already exists.
func CreateFileExclusive(path string, fapl ID) (ID, error) {
	if _, err := os.Stat(path); err == nil {
		return None, fmt.Errorf("file %s already exists", path)
	}
	return CreateFile(path, fapl)
}

// OpenFile opens an existing HDF5 file.
func OpenFile(path string, readWrite bool, fapl ID) (ID, error) {
	comm, info, err := faplComm(fapl)
	if err != nil {
		return None, err
	}
	res, err := acquireResource(path, comm, func() (*fileResource, error) {
		return openFileResource(path, readWrite)
	})
	if err != nil {
		return None, err
	}
	return adoptResource(KindFile, &fileObject{res: res, comm: comm, info: info}, res), nil
}

// FlushFile writes buffered file metadata (superblock EOF) and syncs.
func FlushFile(id ID) error {
	e, err := lookupKind(id, KindFile)
	if err != nil {
		return err
	}
	return e.res.flush()
}

// FilePath returns the filesystem path behind any file-bound id.
func FilePath(id ID) (string, error) {
	e, err := lookup(id)
	if err != nil {
		return "", err
	}
	if e.res == nil {
		return "", fmt.Errorf("identifier %d is not bound to a file", id)
	}
	return e.res.path, nil
}

// FileOf returns a fresh file id for the file containing id.
func FileOf(id ID) (ID, error) {
	e, err := lookup(id)
	if err != nil {
		return None, err
	}
	if e.res == nil {
		return None, fmt.Errorf("identifier %d is not bound to a file", id)
	}
	return register(KindFile, &fileObject{res: e.res, comm: commOf(e.obj)}, e.res), nil
}

// commOf extracts the communicator carried by a file-bound object.
func commOf(obj any) mpi.Comm {
	switch o := obj.(type) {
	case *fileObject:
		return o.comm
	case *groupObject:
		return o.comm
	case *datasetObject:
		return o.comm
	default:
		return nil
	}
}

var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// IsHDF5 reports whether path starts with the HDF5 format signature.
func IsHDF5(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sig := make([]byte, len(hdf5Signature))
	if _, err := f.ReadAt(sig, 0); err != nil {
		return false
	}
	for i := range sig {
		if sig[i] != hdf5Signature[i] {
			return false
		}
	}
	return true
}
