package native

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5/internal/dtype"
	"github.com/robert-malhotra/go-h5/internal/filter"
	"github.com/robert-malhotra/go-h5/internal/layout"
	"github.com/robert-malhotra/go-h5/internal/message"
	"github.com/robert-malhotra/go-h5/internal/object"
	"github.com/robert-malhotra/go-h5/mpi"
)

// datasetObject is the registry object behind a dataset id. Chunked and
// compact datasets defer their header until the first write, because
// the chunk index (or inline data) cannot be produced without the data.
type datasetObject struct {
	res     *fileResource
	comm    mpi.Comm
	path    string
	pending *pendingDataset
}

type pendingDataset struct {
	dt   *message.Datatype
	ds   *message.Dataspace
	snap creationSnapshot
}

func (d *datasetObject) destroy() error { return nil }

// datasetState is the parsed header of a materialized dataset.
type datasetState struct {
	ds        *message.Dataspace
	dt        *message.Datatype
	layoutMsg *message.DataLayout
	pipeline  *message.FilterPipeline
}

func (d *datasetObject) state() (*datasetState, error) {
	if d.pending != nil {
		return nil, fmt.Errorf("dataset %s has not been written yet", d.path)
	}
	addr, err := d.res.resolveAddr(d.path, 0)
	if err != nil {
		return nil, err
	}
	header, err := d.res.readHeader(addr)
	if err != nil {
		return nil, err
	}
	st := &datasetState{
		ds:        header.Dataspace(),
		dt:        header.Datatype(),
		layoutMsg: header.DataLayout(),
		pipeline:  header.FilterPipeline(),
	}
	if st.ds == nil || st.dt == nil || st.layoutMsg == nil {
		return nil, fmt.Errorf("%s is missing dataset header messages", d.path)
	}
	return st, nil
}

// fileDatatype returns the on-disk element type, working for both
// pending and materialized datasets.
func (d *datasetObject) fileDatatype() (*message.Datatype, error) {
	if d.pending != nil {
		return d.pending.dt, nil
	}
	st, err := d.state()
	if err != nil {
		return nil, err
	}
	return st.dt, nil
}

func dataspaceMessage(s *spaceObject) *message.Dataspace {
	switch s.class {
	case SpaceScalar:
		return message.NewScalarDataspace()
	case SpaceNull:
		return message.NewNullDataspace()
	default:
		return message.NewDataspace(s.dims, s.maxDims)
	}
}

// CreateDataset creates a dataset named name under loc with the given
// type, extent and creation settings. Contiguous datasets get their
// header and (zero-filled) storage immediately; chunked and compact
// layouts are materialized on first write.
func CreateDataset(loc ID, name string, typeID, spaceID, dcplID ID) (ID, error) {
	res, base, comm, err := location(loc)
	if err != nil {
		return None, err
	}
	if err := res.requireWritable(); err != nil {
		return None, err
	}
	dt, err := typeOf(typeID)
	if err != nil {
		return None, err
	}
	space, err := spaceOf(spaceID)
	if err != nil {
		return None, err
	}
	snap, err := snapshotDCPL(dcplID)
	if err != nil {
		return None, err
	}
	if snap.layout == LayoutChunked && len(snap.chunk) == 0 {
		return None, fmt.Errorf("chunked layout requires chunk dimensions")
	}
	if snap.layout == LayoutChunked && comm != nil && comm.Size() > 1 {
		return None, fmt.Errorf("chunked datasets are not supported with parallel access")
	}

	dtCopy := *dt
	path := joinPath(base, name)
	dsMsg := dataspaceMessage(space)

	obj := &datasetObject{res: res, comm: comm, path: path}

	switch snap.layout {
	case LayoutContiguous:
		if comm == nil || comm.Size() == 1 || comm.Rank() == 0 {
			err = res.createContiguousDataset(path, dsMsg, &dtCopy)
		}
		if comm != nil && comm.Size() > 1 {
			comm.Barrier()
			if err == nil && comm.Rank() != 0 {
				if _, rerr := res.resolveAddr(path, 0); rerr != nil {
					err = fmt.Errorf("collective dataset creation failed: %w", rerr)
				}
			}
		}
		if err != nil {
			return None, err
		}
	default:
		obj.pending = &pendingDataset{dt: &dtCopy, ds: dsMsg, snap: snap}
	}

	return register(KindDataset, obj, res), nil
}

// createContiguousDataset allocates zero-filled storage, writes the
// dataset header and links it under its parent.
func (r *fileResource) createContiguousDataset(path string, dsMsg *message.Dataspace, dt *message.Datatype) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dataSize := dtype.DataSize(dt, dsMsg.NumElements())
	dataAddr := r.allocate(int64(dataSize))
	if dataSize > 0 {
		if err := r.writer.At(int64(dataAddr)).WriteBytes(make([]byte, dataSize)); err != nil {
			return fmt.Errorf("zero-filling dataset storage: %w", err)
		}
	}

	layoutMsg := message.NewContiguousLayout(dataAddr, dataSize)
	msgs := object.NewDatasetHeader(dsMsg, dt, layoutMsg)
	headerAddr := r.allocate(int64(object.HeaderSize(r.writer, msgs)))
	if _, err := object.WriteHeader(r.writer.At(int64(headerAddr)), msgs); err != nil {
		return fmt.Errorf("writing dataset header: %w", err)
	}

	parent, base := parentPath(path)
	return r.addLink(parent, message.NewHardLink(base, headerAddr))
}

// OpenDataset opens an existing dataset named name under loc.
func OpenDataset(loc ID, name string) (ID, error) {
	res, base, comm, err := location(loc)
	if err != nil {
		return None, err
	}
	path := joinPath(base, name)
	addr, err := res.resolveAddr(path, 0)
	if err != nil {
		return None, err
	}
	header, err := res.readHeader(addr)
	if err != nil {
		return None, err
	}
	if !isDatasetHeader(header) {
		return None, fmt.Errorf("%s is a group, not a dataset", path)
	}
	return register(KindDataset, &datasetObject{res: res, comm: comm, path: path}, res), nil
}

func datasetOf(id ID) (*datasetObject, error) {
	e, err := lookupKind(id, KindDataset)
	if err != nil {
		return nil, err
	}
	return e.obj.(*datasetObject), nil
}

// DatasetSpace returns a fresh dataspace id describing the dataset's
// extent.
func DatasetSpace(id ID) (ID, error) {
	d, err := datasetOf(id)
	if err != nil {
		return None, err
	}
	var ds *message.Dataspace
	if d.pending != nil {
		ds = d.pending.ds
	} else {
		st, err := d.state()
		if err != nil {
			return None, err
		}
		ds = st.ds
	}
	class := SpaceSimple
	if ds.IsScalar() {
		class = SpaceScalar
	} else if ds.IsNull() {
		class = SpaceNull
	}
	var dims, maxDims []uint64
	if class == SpaceSimple {
		dims = ds.Dimensions
		maxDims = ds.MaxDims
	}
	return NewSpace(class, dims, maxDims)
}

// DatasetType returns a fresh datatype id for the dataset's element
// type.
func DatasetType(id ID) (ID, error) {
	d, err := datasetOf(id)
	if err != nil {
		return None, err
	}
	dt, err := d.fileDatatype()
	if err != nil {
		return None, err
	}
	c := *dt
	return registerType(&c), nil
}

// DatasetCreatePlist reconstructs a dataset-create list from the
// dataset's layout and filter pipeline.
func DatasetCreatePlist(id ID) (ID, error) {
	d, err := datasetOf(id)
	if err != nil {
		return None, err
	}

	pl := NewPropList(PlistDatasetCreate)
	if d.pending != nil {
		snap := d.pending.snap
		if snap.layout == LayoutChunked {
			if err := SetChunk(pl, snap.chunk); err != nil {
				return None, err
			}
		} else {
			if err := SetLayoutClass(pl, snap.layout); err != nil {
				return None, err
			}
		}
		applyFilterSnapshot(pl, snap.shuffle, snap.deflate, snap.fletcher32)
		return pl, nil
	}

	st, err := d.state()
	if err != nil {
		return None, err
	}
	switch st.layoutMsg.Class {
	case message.LayoutChunked:
		dims := chunkExtentDims(st.layoutMsg.ChunkDims, len(st.ds.Dimensions))
		if err := SetChunk(pl, dims); err != nil {
			return None, err
		}
	case message.LayoutCompact:
		if err := SetLayoutClass(pl, LayoutCompact); err != nil {
			return None, err
		}
	}
	if st.pipeline != nil {
		shuffle := st.pipeline.HasFilter(message.FilterShuffle)
		deflate := -1
		for _, f := range st.pipeline.Filters {
			if f.ID == message.FilterDeflate && len(f.ClientData) > 0 {
				deflate = int(f.ClientData[0])
			}
		}
		applyFilterSnapshot(pl, shuffle, deflate, st.pipeline.HasFilter(message.FilterFletcher32))
	}
	return pl, nil
}

func applyFilterSnapshot(pl ID, shuffle bool, deflate int, fletcher32 bool) {
	if shuffle {
		SetShuffle(pl)
	}
	if deflate >= 0 {
		SetDeflate(pl, deflate)
	}
	if fletcher32 {
		SetFletcher32(pl)
	}
}

// chunkExtentDims trims the trailing element-size dimension v4 layouts
// carry and widens to uint64.
func chunkExtentDims(chunkDims []uint32, rank int) []uint64 {
	dims := chunkDims
	if len(dims) == rank+1 {
		dims = dims[:rank]
	}
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[i] = uint64(d)
	}
	return out
}

// spansFor returns the selected element runs and their total for a
// dataspace id, treating None as "everything" over defaultN elements.
func spansFor(id ID, defaultN uint64) ([]span, uint64, error) {
	if id == None {
		if defaultN == 0 {
			return nil, 0, nil
		}
		return []span{{start: 0, count: defaultN}}, defaultN, nil
	}
	s, err := spaceOf(id)
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	spans := append([]span(nil), s.selectionSpans()...)
	var n uint64
	for _, sp := range spans {
		n += sp.count
	}
	return spans, n, nil
}

// pairSpans walks two equal-cardinality span lists in lockstep, calling
// fn for each maximal aligned run.
func pairSpans(mem, file []span, fn func(memStart, fileStart, count uint64) error) error {
	i, j := 0, 0
	var mo, fo uint64
	for i < len(mem) && j < len(file) {
		cnt := min64(mem[i].count-mo, file[j].count-fo)
		if err := fn(mem[i].start+mo, file[j].start+fo, cnt); err != nil {
			return err
		}
		mo += cnt
		fo += cnt
		if mo == mem[i].count {
			i++
			mo = 0
		}
		if fo == file[j].count {
			j++
			fo = 0
		}
	}
	return nil
}

// checkMemType validates an optional memory type against the file
// type. Type conversion happens at the Go-value boundary, so the two
// descriptions must agree structurally.
func checkMemType(memtype ID, fileDT *message.Datatype) error {
	if memtype == None {
		return nil
	}
	dt, err := typeOf(memtype)
	if err != nil {
		return err
	}
	if !datatypesEqual(dt, fileDT) {
		return fmt.Errorf("memory datatype does not match the dataset's file datatype")
	}
	return nil
}

// WriteDataset writes data into the dataset. Collective transfers
// barrier on entry and completion; independent transfers impose no
// ordering.
func WriteDataset(id ID, data any, memtype, memspace, filespace, xfer ID) error {
	d, err := datasetOf(id)
	if err != nil {
		return err
	}
	mode, xp, err := xferSnapshot(xfer)
	if err != nil {
		return err
	}
	collective := mode == XferCollective && d.comm != nil && d.comm.Size() > 1

	if collective {
		d.comm.Barrier()
	}
	err = d.write(data, memtype, memspace, filespace)
	if collective {
		d.comm.Barrier()
	}
	if xp != nil {
		if collective {
			xp.recordIO(IOCollective)
		} else {
			xp.recordIO(IOIndependent)
		}
	}
	return err
}

func (d *datasetObject) write(data any, memtype, memspace, filespace ID) error {
	if err := d.res.requireWritable(); err != nil {
		return err
	}
	fileDT, err := d.fileDatatype()
	if err != nil {
		return err
	}
	if err := checkMemType(memtype, fileDT); err != nil {
		return err
	}
	if d.pending != nil {
		return d.materialize(data, memspace, filespace)
	}
	return d.writeContiguous(data, memspace, filespace)
}

// materialize performs the deferred first write of a chunked or compact
// dataset: encode, filter, lay out the chunks (or inline data), then
// write the header and link it.
func (d *datasetObject) materialize(data any, memspace, filespace ID) error {
	p := d.pending
	npoints := p.ds.NumElements()

	if _, nSel, err := spansFor(filespace, npoints); err != nil {
		return err
	} else if nSel != npoints {
		return fmt.Errorf("partial writes require contiguous storage; the first write to a %s-layout dataset must cover the full extent",
			layoutName(p.snap.layout))
	}
	if _, nMem, err := spansFor(memspace, npoints); err != nil {
		return err
	} else if nMem != npoints {
		return fmt.Errorf("memory selection covers %d points, dataset has %d", nMem, npoints)
	}

	enc, n, err := encodeElements(d.res, p.dt, data)
	if err != nil {
		return err
	}
	if n != npoints {
		return fmt.Errorf("data has %d elements, dataset extent has %d", n, npoints)
	}

	d.res.mu.Lock()
	defer d.res.mu.Unlock()

	var layoutMsg *message.DataLayout
	var pipeMsg *message.FilterPipeline

	switch p.snap.layout {
	case LayoutCompact:
		layoutMsg = message.NewCompactLayout(enc)
	case LayoutChunked:
		layoutMsg, pipeMsg, err = d.res.writeChunkedData(enc, p)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected deferred layout %d", p.snap.layout)
	}

	msgs := object.NewDatasetHeader(p.ds, p.dt, layoutMsg)
	if pipeMsg != nil {
		msgs = append(msgs, pipeMsg)
	}
	headerAddr := d.res.allocate(int64(object.HeaderSize(d.res.writer, msgs)))
	if _, err := object.WriteHeader(d.res.writer.At(int64(headerAddr)), msgs); err != nil {
		return fmt.Errorf("writing dataset header: %w", err)
	}

	parent, base := parentPath(d.path)
	if err := d.res.addLink(parent, message.NewHardLink(base, headerAddr)); err != nil {
		return err
	}
	d.pending = nil
	return nil
}

func layoutName(l LayoutClass) string {
	switch l {
	case LayoutChunked:
		return "chunked"
	case LayoutCompact:
		return "compact"
	default:
		return "contiguous"
	}
}

// writeChunkedData writes the encoded data as chunks. Data fitting one
// chunk is stored as a single chunk (implicit index when unfiltered);
// larger one-dimensional data goes through a fixed-array index.
// Filters are only applied in the single-chunk case, where the layout
// message can carry the filtered size.
func (r *fileResource) writeChunkedData(enc []byte, p *pendingDataset) (*message.DataLayout, *message.FilterPipeline, error) {
	rank := len(p.ds.Dimensions)
	if len(p.snap.chunk) != rank {
		return nil, nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(p.snap.chunk), rank)
	}
	chunkDims := make([]uint32, rank)
	for i, c := range p.snap.chunk {
		chunkDims[i] = uint32(c)
	}

	pipeMsg := pipelineMessage(p.snap, p.dt.Size)
	cw := layout.NewChunkWriter(r.writer, chunkDims, p.dt.Size, r.allocate)
	chunkSize := cw.ChunkSize()

	if uint64(len(enc)) <= chunkSize {
		payload := enc
		if pipeMsg != nil {
			pipe, err := filter.NewPipeline(pipeMsg)
			if err != nil {
				return nil, nil, err
			}
			pipe.SetElementSize(int(p.dt.Size))
			payload, err = pipe.Encode(enc)
			if err != nil {
				return nil, nil, fmt.Errorf("applying filter pipeline: %w", err)
			}
		}
		addr, err := cw.WriteSingleChunk(payload)
		if err != nil {
			return nil, nil, err
		}
		var msg *message.DataLayout
		if pipeMsg != nil {
			msg = message.NewChunkedLayout(chunkDims, p.dt.Size, message.ChunkIndexSingleChunk)
			msg.ChunkFlags |= message.ChunkFlagSingleIndexWithFilter
			msg.FilteredChunkSize = uint64(len(payload))
			msg.FilterMask = 0
		} else {
			msg = message.NewChunkedLayout(chunkDims, p.dt.Size, message.ChunkIndexImplicit)
		}
		msg.ChunkIndexAddr = addr
		return msg, pipeMsg, nil
	}

	if pipeMsg != nil {
		return nil, nil, fmt.Errorf("filtered datasets must fit in a single chunk")
	}
	if rank != 1 {
		return nil, nil, fmt.Errorf("multi-chunk storage is only supported for one-dimensional datasets")
	}

	chunks := layout.SplitIntoChunks(enc, p.ds.Dimensions, chunkDims, p.dt.Size)
	sizes := make([]uint32, len(chunks))
	for i := range chunks {
		// Pad edge chunks so every stored chunk is full-sized.
		if uint64(len(chunks[i])) < chunkSize {
			padded := make([]byte, chunkSize)
			copy(padded, chunks[i])
			chunks[i] = padded
		}
		sizes[i] = uint32(chunkSize)
	}
	addrs, err := cw.WriteChunks(chunks)
	if err != nil {
		return nil, nil, err
	}
	indexAddr, err := cw.WriteFixedArrayIndex(addrs, sizes)
	if err != nil {
		return nil, nil, err
	}
	msg := message.NewChunkedLayout(chunkDims, p.dt.Size, message.ChunkIndexFixedArray)
	msg.ChunkIndexAddr = indexAddr
	return msg, nil, nil
}

// pipelineMessage builds the filter pipeline message for the
// dataset-create settings, in write order: shuffle, deflate, fletcher.
func pipelineMessage(snap creationSnapshot, elemSize uint32) *message.FilterPipeline {
	var filters []message.FilterInfo
	if snap.shuffle {
		filters = append(filters, message.FilterInfo{
			ID:         message.FilterShuffle,
			ClientData: []uint32{elemSize},
		})
	}
	if snap.deflate >= 0 {
		filters = append(filters, message.FilterInfo{
			ID:         message.FilterDeflate,
			ClientData: []uint32{uint32(snap.deflate)},
		})
	}
	if snap.fletcher32 {
		filters = append(filters, message.FilterInfo{
			ID:    message.FilterFletcher32,
			Flags: 0x01, // optional: readable even if verification is skipped
		})
	}
	if len(filters) == 0 {
		return nil
	}
	return message.NewFilterPipeline(filters)
}

// writeContiguous scatters the encoded data into the dataset's
// contiguous storage according to the memory and file selections.
func (d *datasetObject) writeContiguous(data any, memspace, filespace ID) error {
	st, err := d.state()
	if err != nil {
		return err
	}
	if st.layoutMsg.Class != message.LayoutContiguous {
		return fmt.Errorf("rewriting chunked or compact storage is not supported")
	}

	total := st.ds.NumElements()
	fileSpans, nSel, err := spansFor(filespace, total)
	if err != nil {
		return err
	}
	if nSel > total {
		return fmt.Errorf("file selection covers %d points, extent has %d", nSel, total)
	}

	enc, nElems, err := encodeElements(d.res, st.dt, data)
	if err != nil {
		return err
	}
	memSpans, nMem, err := spansFor(memspace, nElems)
	if err != nil {
		return err
	}
	if nMem != nSel {
		return fmt.Errorf("memory selection covers %d points, file selection covers %d", nMem, nSel)
	}

	elemSize := uint64(st.dt.Size)
	dataAddr := st.layoutMsg.Address
	return pairSpans(memSpans, fileSpans, func(memStart, fileStart, count uint64) error {
		src := enc[memStart*elemSize : (memStart+count)*elemSize]
		w := d.res.writer.At(int64(dataAddr + fileStart*elemSize))
		return w.WriteBytes(src)
	})
}

// ReadDataset reads the dataset's selected elements into dest, which
// must be a pointer to a slice (or to a supported scalar container).
func ReadDataset(id ID, dest any, memtype, memspace, filespace, xfer ID) error {
	d, err := datasetOf(id)
	if err != nil {
		return err
	}
	mode, xp, err := xferSnapshot(xfer)
	if err != nil {
		return err
	}
	collective := mode == XferCollective && d.comm != nil && d.comm.Size() > 1

	if collective {
		d.comm.Barrier()
	}
	err = d.read(dest, memtype, memspace, filespace)
	if collective {
		d.comm.Barrier()
	}
	if xp != nil {
		if collective {
			xp.recordIO(IOCollective)
		} else {
			xp.recordIO(IOIndependent)
		}
	}
	return err
}

func (d *datasetObject) read(dest any, memtype, memspace, filespace ID) error {
	st, err := d.state()
	if err != nil {
		return err
	}
	if err := checkMemType(memtype, st.dt); err != nil {
		return err
	}

	lay, err := layout.New(st.layoutMsg, st.ds, st.dt, st.pipeline, d.res.reader)
	if err != nil {
		return err
	}
	raw, err := lay.Read()
	if err != nil {
		return err
	}

	total := st.ds.NumElements()
	fileSpans, nSel, err := spansFor(filespace, total)
	if err != nil {
		return err
	}
	elemSize := uint64(st.dt.Size)

	gathered := make([]byte, nSel*elemSize)
	var pos uint64
	for _, sp := range fileSpans {
		end := (sp.start + sp.count) * elemSize
		if end > uint64(len(raw)) {
			return fmt.Errorf("file selection exceeds stored data")
		}
		copy(gathered[pos:], raw[sp.start*elemSize:end])
		pos += sp.count * elemSize
	}

	if memspace == None {
		return dtype.ConvertWithReader(st.dt, gathered, nSel, dest, d.res.reader)
	}
	return scatterIntoDest(st, gathered, nSel, dest, memspace, d)
}

// scatterIntoDest converts the gathered bytes and places them at the
// destination positions named by the memory-space selection. dest must
// point to a slice at least as long as the memory extent.
func scatterIntoDest(st *datasetState, gathered []byte, nSel uint64, dest any, memspace ID, d *datasetObject) error {
	memSpans, nMem, err := spansFor(memspace, nSel)
	if err != nil {
		return err
	}
	if nMem != nSel {
		return fmt.Errorf("memory selection covers %d points, file selection covers %d", nMem, nSel)
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must be a pointer to a slice for selected reads")
	}

	tmpPtr := reflect.New(dv.Elem().Type())
	if err := dtype.ConvertWithReader(st.dt, gathered, nSel, tmpPtr.Interface(), d.res.reader); err != nil {
		return err
	}
	tmp := tmpPtr.Elem()

	out := dv.Elem()
	var consumed uint64
	for _, sp := range memSpans {
		if sp.start+sp.count > uint64(out.Len()) {
			return fmt.Errorf("memory selection exceeds destination length %d", out.Len())
		}
		for i := uint64(0); i < sp.count; i++ {
			out.Index(int(sp.start + i)).Set(tmp.Index(int(consumed + i)))
		}
		consumed += sp.count
	}
	return nil
}
