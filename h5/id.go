package h5

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// handle is the reference-counted core every façade type embeds. A
// handle owns exactly one reference on its native id: Close (or
// garbage collection of an unclosed handle) releases it.
type handle struct {
	mu      sync.Mutex
	id      native.ID
	valid   bool
	pinned  bool
	cleanup runtime.Cleanup
}

// newHandle adopts a fresh native id (already holding one reference).
// If the handle is collected while still valid, the cleanup releases
// the reference and logs any teardown error instead of propagating it.
func newHandle(id native.ID) *handle {
	h := &handle{id: id, valid: true}
	h.cleanup = runtime.AddCleanup(h, releaseLeaked, id)
	return h
}

// newPinnedHandle adopts a pinned singleton id. Closing it is a no-op
// and no cleanup is registered.
func newPinnedHandle(id native.ID) *handle {
	return &handle{id: id, valid: true, pinned: true}
}

func releaseLeaked(id native.ID) {
	if _, err := native.DecRef(id); err != nil {
		logger().Warn("releasing leaked handle", zap.Int64("id", int64(id)), zap.Error(err))
	}
}

// ID returns the raw identifier, or 0 for a closed handle.
func (h *handle) ID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return int64(native.None)
	}
	return int64(h.id)
}

func (h *handle) nativeID() native.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return native.None
	}
	return h.id
}

// IsValid reports whether the handle still owns a live identifier.
func (h *handle) IsValid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.valid && native.IsValid(h.id)
}

// RefCount returns the native reference count, for diagnostics.
func (h *handle) RefCount() (int, error) {
	id := h.nativeID()
	if id == native.None {
		return 0, newError(InspectFailed, "RefCount", "handle is closed", nil)
	}
	n, err := native.RefCount(id)
	if err != nil {
		return 0, wrapError(InspectFailed, "RefCount", err)
	}
	return n, nil
}

// copyRef adds a reference and returns the shared id, for Copy
// constructors.
func (h *handle) copyRef(op string) (native.ID, error) {
	id := h.nativeID()
	if id == native.None {
		return native.None, newError(InvalidArgument, op, "handle is closed", nil)
	}
	if _, err := native.IncRef(id); err != nil {
		return native.None, wrapError(InvalidArgument, op, err)
	}
	return id, nil
}

// close releases the handle's reference. It is idempotent; pinned
// singletons ignore it.
func (h *handle) close(op string) error {
	h.mu.Lock()
	if h.pinned {
		h.mu.Unlock()
		return nil
	}
	if !h.valid {
		h.mu.Unlock()
		return nil
	}
	h.valid = false
	id := h.id
	h.cleanup.Stop()
	h.mu.Unlock()

	if _, err := native.DecRef(id); err != nil {
		return newError(CloseFailed, op, "", err)
	}
	return nil
}

// File returns a fresh handle on the file containing this entity.
func (h *handle) File() (*File, error) {
	id := h.nativeID()
	if id == native.None {
		return nil, newError(InspectFailed, "File", "handle is closed", nil)
	}
	fid, err := native.FileOf(id)
	if err != nil {
		return nil, wrapError(InspectFailed, "File", err)
	}
	return newFile(fid), nil
}
