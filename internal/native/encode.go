package native

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5/internal/dtype"
	"github.com/robert-malhotra/go-h5/internal/heap"
	"github.com/robert-malhotra/go-h5/internal/message"
)

// countElements returns the number of elements a Go value represents:
// slice length for slices, 1 for scalars and strings.
func countElements(src any) (uint64, error) {
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return uint64(v.Len()), nil
	case reflect.String, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported value kind %v", v.Kind())
	}
}

// encodeElements converts a Go value into file-encoded element bytes.
// Variable-length strings spill their payloads into a fresh global heap
// collection; everything else goes through the engine encoder.
func encodeElements(res *fileResource, dt *message.Datatype, src any) ([]byte, uint64, error) {
	n, err := countElements(src)
	if err != nil {
		return nil, 0, err
	}
	if dt.Class == message.ClassVarLen && dt.IsVarLenString {
		buf, err := encodeVlenStrings(res, src)
		return buf, n, err
	}
	buf, err := dtype.Encode(dt, src)
	return buf, n, err
}

// encodeVlenStrings writes the string payloads into a global heap
// collection and returns the per-element references (length, collection
// address, object index).
func encodeVlenStrings(res *fileResource, src any) ([]byte, error) {
	if err := res.requireWritable(); err != nil {
		return nil, err
	}

	var strs []string
	switch v := src.(type) {
	case string:
		strs = []string{v}
	case []string:
		strs = v
	default:
		rv := reflect.ValueOf(src)
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot encode %T as variable-length strings", src)
		}
		strs = make([]string, rv.Len())
		for i := range strs {
			strs[i] = rv.Index(i).String()
		}
	}

	ghw := heap.NewGlobalHeapWriter(res.writer, res.allocate)
	indexes := make([]uint16, len(strs))
	for i, s := range strs {
		indexes[i] = ghw.AddString(s)
	}
	heapAddr, ids, err := ghw.Write()
	if err != nil {
		return nil, fmt.Errorf("writing global heap: %w", err)
	}

	offsetSize := res.writer.OffsetSize()
	refSize := 4 + offsetSize + 4
	buf := make([]byte, refSize*len(strs))
	for i, s := range strs {
		off := i * refSize
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
		id := ids[indexes[i]]
		putLE(buf[off+4:], heapAddr, offsetSize)
		binary.LittleEndian.PutUint32(buf[off+4+offsetSize:], id.ObjectIndex)
	}
	return buf, nil
}

func putLE(b []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
