package message

import (
	"github.com/robert-malhotra/go-h5/internal/binary"
)

// NewFilterPipeline creates a version 2 filter pipeline message.
func NewFilterPipeline(filters []FilterInfo) *FilterPipeline {
	return &FilterPipeline{
		Version: 2,
		Filters: filters,
	}
}

// Serialize writes the FilterPipeline message in version 2 format.
// Only standard filters (ID < 256) are supported, so no name fields
// are emitted.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(2); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(len(m.Filters))); err != nil {
		return err
	}

	for _, f := range m.Filters {
		if err := w.WriteUint16(f.ID); err != nil {
			return err
		}
		if err := w.WriteUint16(f.Flags); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(len(f.ClientData))); err != nil {
			return err
		}
		for _, cd := range f.ClientData {
			if err := w.WriteUint32(cd); err != nil {
				return err
			}
		}
	}

	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *FilterPipeline) SerializedSize(w *binary.Writer) int {
	size := 2 // version + number of filters
	for _, f := range m.Filters {
		size += 6 + 4*len(f.ClientData)
	}
	return size
}
