package native

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-h5/internal/btree"
	"github.com/robert-malhotra/go-h5/internal/heap"
	"github.com/robert-malhotra/go-h5/internal/message"
	"github.com/robert-malhotra/go-h5/internal/object"
	"github.com/robert-malhotra/go-h5/mpi"
)

// maxLinkDepth bounds soft-link resolution so link cycles terminate.
const maxLinkDepth = 100

// notFoundError marks a path that fails to resolve: a missing
// component, or a dangling or cyclic soft link. I/O and format errors
// hit while walking the file are plain errors.
type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }

func notFound(format string, args ...interface{}) error {
	return &notFoundError{msg: fmt.Sprintf(format, args...)}
}

// groupObject is the registry object behind a group id. The header
// address is never cached: link additions relocate headers, so every
// operation resolves the path afresh.
type groupObject struct {
	res  *fileResource
	comm mpi.Comm
	path string
}

func (g *groupObject) destroy() error { return nil }

func (r *fileResource) readHeader(addr uint64) (*object.Header, error) {
	return object.Read(r.reader, addr)
}

// resolveAddr walks path from the root group and returns the object
// header address it names. depth tracks soft-link hops.
func (r *fileResource) resolveAddr(path string, depth int) (uint64, error) {
	if depth > maxLinkDepth {
		return 0, notFound("maximum link depth exceeded resolving %s", path)
	}

	addr := r.sb.RootGroupAddress
	cur := "/"
	for _, part := range splitPath(path) {
		next, err := r.findChild(addr, cur, part, depth)
		if err != nil {
			return 0, err
		}
		addr = next
		cur = joinPath(cur, part)
	}
	return addr, nil
}

// findChild locates the named member of the group at parentAddr.
// Members are found through link messages (v2 headers), a symbol table
// message (v1 headers), or the root scratch-pad addresses recorded in
// v0 superblocks.
func (r *fileResource) findChild(parentAddr uint64, parentPath, name string, depth int) (uint64, error) {
	header, err := r.readHeader(parentAddr)
	if err != nil {
		return 0, fmt.Errorf("reading group header at %d: %w", parentAddr, err)
	}

	for _, msg := range header.GetMessages(message.TypeLink) {
		link, ok := msg.(*message.Link)
		if !ok || link.Name != name {
			continue
		}
		return r.resolveLink(link, parentPath, depth)
	}

	if msg := header.GetMessage(message.TypeSymbolTable); msg != nil {
		st := msg.(*message.SymbolTable)
		addr, found, err := r.findInSymbolTable(st.BTreeAddress, st.LocalHeapAddress, parentPath, name, depth)
		if err != nil {
			return 0, err
		}
		if found {
			return addr, nil
		}
	}

	// v0 superblocks cache the root group's B-tree and heap addresses
	// in the symbol table entry scratch pad.
	if parentAddr == r.sb.RootGroupAddress && r.hasRootScratchPad() {
		addr, found, err := r.findInSymbolTable(r.sb.RootGroupBTreeAddress, r.sb.RootGroupLocalHeapAddress, parentPath, name, depth)
		if err != nil {
			return 0, err
		}
		if found {
			return addr, nil
		}
	}

	return 0, notFound("object %s not found in %s", name, cleanPath(parentPath))
}

func (r *fileResource) hasRootScratchPad() bool {
	return r.sb.RootGroupBTreeAddress != 0 &&
		!r.reader.IsUndefinedOffset(r.sb.RootGroupBTreeAddress)
}

func (r *fileResource) resolveLink(link *message.Link, parentPath string, depth int) (uint64, error) {
	switch {
	case link.IsHard():
		return link.ObjectAddress, nil
	case link.IsSoft():
		return r.resolveSoftTarget(link.SoftLinkValue, parentPath, depth)
	default:
		return 0, fmt.Errorf("external link %s is not supported", link.Name)
	}
}

func (r *fileResource) resolveSoftTarget(target, parentPath string, depth int) (uint64, error) {
	if !strings.HasPrefix(target, "/") {
		target = joinPath(parentPath, target)
	}
	return r.resolveAddr(target, depth+1)
}

func (r *fileResource) findInSymbolTable(btreeAddr, heapAddr uint64, parentPath, name string, depth int) (uint64, bool, error) {
	localHeap, err := heap.ReadLocalHeap(r.reader, heapAddr)
	if err != nil {
		return 0, false, fmt.Errorf("reading local heap: %w", err)
	}
	entries, err := btree.ReadGroupEntries(r.reader, btreeAddr, localHeap)
	if err != nil {
		return 0, false, fmt.Errorf("reading group B-tree: %w", err)
	}
	for _, entry := range entries {
		if entry.Name != name {
			continue
		}
		if entry.LinkType == 1 {
			addr, err := r.resolveSoftTarget(entry.SoftLinkValue, parentPath, depth)
			return addr, err == nil, err
		}
		return entry.ObjectAddress, true, nil
	}
	return 0, false, nil
}

// members lists the names of a group's children.
func (r *fileResource) members(addr uint64) ([]string, error) {
	header, err := r.readHeader(addr)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, msg := range header.GetMessages(message.TypeLink) {
		if link, ok := msg.(*message.Link); ok {
			names = append(names, link.Name)
		}
	}
	if len(names) > 0 {
		return names, nil
	}

	btreeAddr, heapAddr := uint64(0), uint64(0)
	if msg := header.GetMessage(message.TypeSymbolTable); msg != nil {
		st := msg.(*message.SymbolTable)
		btreeAddr, heapAddr = st.BTreeAddress, st.LocalHeapAddress
	} else if addr == r.sb.RootGroupAddress && r.hasRootScratchPad() {
		btreeAddr, heapAddr = r.sb.RootGroupBTreeAddress, r.sb.RootGroupLocalHeapAddress
	}
	if btreeAddr == 0 || r.reader.IsUndefinedOffset(btreeAddr) {
		return names, nil
	}

	localHeap, err := heap.ReadLocalHeap(r.reader, heapAddr)
	if err != nil {
		return nil, err
	}
	entries, err := btree.ReadGroupEntries(r.reader, btreeAddr, localHeap)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names, nil
}

// isDatasetHeader distinguishes datasets from groups: only datasets
// carry a dataspace message.
func isDatasetHeader(h *object.Header) bool {
	return h.GetMessage(message.TypeDataspace) != nil
}

// loadLinks collects the link messages of the group at addr.
func (r *fileResource) loadLinks(addr uint64) ([]*message.Link, error) {
	header, err := r.readHeader(addr)
	if err != nil {
		return nil, err
	}
	var links []*message.Link
	for _, msg := range header.GetMessages(message.TypeLink) {
		if link, ok := msg.(*message.Link); ok {
			links = append(links, link)
		}
	}
	return links, nil
}

// setGroupLinks rewrites the group at path with the given link set at a
// freshly allocated header and repoints the parent chain at it.
func (r *fileResource) setGroupLinks(path string, links []*message.Link) error {
	msgs := object.NewGroupHeader(links)
	size := object.HeaderSizeWithMinChunk(r.writer, msgs, object.MinGroupChunkSize)
	newAddr := r.allocate(int64(size))
	if _, err := object.WriteHeaderWithMinChunk(r.writer.At(int64(newAddr)), msgs, object.MinGroupChunkSize); err != nil {
		return fmt.Errorf("writing group header: %w", err)
	}
	return r.relocate(path, newAddr)
}

// relocate makes the parent chain point at newAddr for the group at
// path. Headers are append-only, so every link addition moves a header
// and ripples one hard-link update per ancestor up to the root.
func (r *fileResource) relocate(path string, newAddr uint64) error {
	if cleanPath(path) == "/" {
		r.sb.RootGroupAddress = newAddr
		return nil
	}

	parent, base := parentPath(path)
	parentAddr, err := r.resolveAddr(parent, 0)
	if err != nil {
		return err
	}
	links, err := r.loadLinks(parentAddr)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.Name == base && link.IsHard() {
			link.ObjectAddress = newAddr
			return r.setGroupLinks(parent, links)
		}
	}
	return fmt.Errorf("no hard link for %s in %s", base, parent)
}

// addLink appends a link to the group at parentPath.
func (r *fileResource) addLink(parent string, link *message.Link) error {
	addr, err := r.resolveAddr(parent, 0)
	if err != nil {
		return err
	}
	links, err := r.loadLinks(addr)
	if err != nil {
		return err
	}
	for _, existing := range links {
		if existing.Name == link.Name {
			return fmt.Errorf("name %s already exists in %s", link.Name, cleanPath(parent))
		}
	}
	links = append(links, link)
	return r.setGroupLinks(parent, links)
}

// createGroupAt writes an empty group header and links it under its
// parent path.
func (r *fileResource) createGroupAt(path string) error {
	if err := r.requireWritable(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := object.NewEmptyGroupHeader()
	size := object.HeaderSizeWithMinChunk(r.writer, msgs, object.MinGroupChunkSize)
	addr := r.allocate(int64(size))
	if _, err := object.WriteHeaderWithMinChunk(r.writer.At(int64(addr)), msgs, object.MinGroupChunkSize); err != nil {
		return fmt.Errorf("writing group header: %w", err)
	}

	parent, base := parentPath(path)
	return r.addLink(parent, message.NewHardLink(base, addr))
}

// location resolves a file or group id to its resource, base path and
// communicator.
func location(id ID) (*fileResource, string, mpi.Comm, error) {
	e, err := lookupKind(id, KindFile|KindGroup)
	if err != nil {
		return nil, "", nil, err
	}
	switch obj := e.obj.(type) {
	case *fileObject:
		return obj.res, "/", obj.comm, nil
	case *groupObject:
		return obj.res, obj.path, obj.comm, nil
	default:
		return nil, "", nil, fmt.Errorf("identifier %d is not a location", id)
	}
}

// CreateGroup creates a new group named name under loc and returns its
// id. Under a communicator the creation runs on rank 0 with a barrier
// before other ranks attach.
func CreateGroup(loc ID, name string) (ID, error) {
	res, base, comm, err := location(loc)
	if err != nil {
		return None, err
	}
	path := joinPath(base, name)

	if comm == nil || comm.Size() == 1 || comm.Rank() == 0 {
		err = res.createGroupAt(path)
	}
	if comm != nil && comm.Size() > 1 {
		comm.Barrier()
		if err == nil && comm.Rank() != 0 {
			if _, rerr := res.resolveAddr(path, 0); rerr != nil {
				err = fmt.Errorf("collective group creation failed: %w", rerr)
			}
		}
	}
	if err != nil {
		return None, err
	}
	return register(KindGroup, &groupObject{res: res, comm: comm, path: path}, res), nil
}

// OpenGroup opens an existing group named name under loc.
func OpenGroup(loc ID, name string) (ID, error) {
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
	if isDatasetHeader(header) {
		return None, fmt.Errorf("%s is a dataset, not a group", path)
	}
	return register(KindGroup, &groupObject{res: res, comm: comm, path: path}, res), nil
}

// OpenObject opens the object at path (relative to loc) as either a
// group or a dataset, detected from its header.
func OpenObject(loc ID, path string) (ID, error) {
	res, base, comm, err := location(loc)
	if err != nil {
		return None, err
	}
	full := path
	if !strings.HasPrefix(path, "/") {
		full = joinPath(base, path)
	}

	addr, err := res.resolveAddr(full, 0)
	if err != nil {
		return None, err
	}
	header, err := res.readHeader(addr)
	if err != nil {
		return None, err
	}
	if isDatasetHeader(header) {
		return register(KindDataset, &datasetObject{res: res, comm: comm, path: cleanPath(full)}, res), nil
	}
	return register(KindGroup, &groupObject{res: res, comm: comm, path: cleanPath(full)}, res), nil
}

// Exists reports whether path (relative to loc) names an object. The
// root path always exists. A path that fails to resolve (missing
// component, dangling or cyclic soft link) is a plain false; I/O and
// format errors propagate.
func Exists(loc ID, path string) (bool, error) {
	res, base, _, err := location(loc)
	if err != nil {
		return false, err
	}
	full := path
	if !strings.HasPrefix(path, "/") {
		full = joinPath(base, path)
	}
	if cleanPath(full) == "/" {
		return true, nil
	}
	_, err = res.resolveAddr(full, 0)
	var nf *notFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Members lists the child names of a file's root group or a group.
func Members(loc ID) ([]string, error) {
	res, base, _, err := location(loc)
	if err != nil {
		return nil, err
	}
	addr, err := res.resolveAddr(base, 0)
	if err != nil {
		return nil, err
	}
	return res.members(addr)
}

// CreateSoftLink records a soft link named name under loc pointing at
// target.
func CreateSoftLink(loc ID, target, name string) error {
	res, base, comm, err := location(loc)
	if err != nil {
		return err
	}
	if err := res.requireWritable(); err != nil {
		return err
	}

	if comm == nil || comm.Size() == 1 || comm.Rank() == 0 {
		res.mu.Lock()
		err = res.addLink(base, message.NewSoftLink(name, target))
		res.mu.Unlock()
	}
	if comm != nil && comm.Size() > 1 {
		comm.Barrier()
	}
	return err
}

// PathOf returns the absolute path of a file, group, dataset or
// attribute-owning id. Files map to "/".
func PathOf(id ID) (string, error) {
	e, err := lookup(id)
	if err != nil {
		return "", err
	}
	switch obj := e.obj.(type) {
	case *fileObject:
		return "/", nil
	case *groupObject:
		return obj.path, nil
	case *datasetObject:
		return obj.path, nil
	case *attributeObject:
		if obj.ownerPath == "/" {
			return "/@" + obj.name, nil
		}
		return obj.ownerPath + "@" + obj.name, nil
	default:
		return "", fmt.Errorf("identifier %d has no path", id)
	}
}
