package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/un9021/uniset2/sm"
)

// HeaderSize and EntrySize are the fixed-width layout of the datagram pack
// (spec.md §6): {nodeId int32, procId int32, dcount int32} followed by
// dcount entries of {id int32, value int64}.
const (
	HeaderSize = 4 + 4 + 4
	EntrySize  = 4 + 8
)

// byteOrder is pinned to big-endian; see DESIGN.md's resolution of the
// wire layout's open endianness question.
var byteOrder = binary.BigEndian

// Header is the datagram pack's leading fixed-size record.
type Header struct {
	NodeID  int32
	ProcID  int32
	DCount  int32
}

// EncodeHeader renders h into its fixed-width wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	byteOrder.PutUint32(buf[0:4], uint32(h.NodeID))
	byteOrder.PutUint32(buf[4:8], uint32(h.ProcID))
	byteOrder.PutUint32(buf[8:12], uint32(h.DCount))
	return buf
}

// DecodeHeader parses the leading HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short buffer for header: %d bytes", len(buf))
	}
	return Header{
		NodeID: int32(byteOrder.Uint32(buf[0:4])),
		ProcID: int32(byteOrder.Uint32(buf[4:8])),
		DCount: int32(byteOrder.Uint32(buf[8:12])),
	}, nil
}

func encodeEntry(id sm.SensorId, value int64) []byte {
	buf := make([]byte, EntrySize)
	byteOrder.PutUint32(buf[0:4], uint32(int32(id)))
	byteOrder.PutUint64(buf[4:12], uint64(value))
	return buf
}

// DecodeEntry parses one {id, value} entry from the front of buf.
func DecodeEntry(buf []byte) (sm.SensorId, int64, error) {
	if len(buf) < EntrySize {
		return sm.NoSensor, 0, fmt.Errorf("wire: short buffer for entry: %d bytes", len(buf))
	}
	id := sm.SensorId(int32(byteOrder.Uint32(buf[0:4])))
	value := int64(byteOrder.Uint64(buf[4:12]))
	return id, value, nil
}

// PackEntry is one (id, value) pair in declaration order, ready to be
// written into a datagram body by EncodePack.
type PackEntry struct {
	ID    sm.SensorId
	Value int64
}

// EncodePack renders a full datagram: header followed by every entry in
// declaration order (spec.md §4.7, §8 scenario 4).
func EncodePack(nodeID, procID int32, entries []PackEntry) []byte {
	h := Header{NodeID: nodeID, ProcID: procID, DCount: int32(len(entries))}
	buf := make([]byte, 0, HeaderSize+len(entries)*EntrySize)
	buf = append(buf, EncodeHeader(h)...)
	for _, e := range entries {
		buf = append(buf, encodeEntry(e.ID, e.Value)...)
	}
	return buf
}

// DecodePack parses a full datagram back into its header and entries;
// used by tests and by any peer-side verification tooling.
func DecodePack(buf []byte) (Header, []PackEntry, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	rest := buf[HeaderSize:]
	entries := make([]PackEntry, 0, h.DCount)
	for i := int32(0); i < h.DCount; i++ {
		off := int(i) * EntrySize
		if off+EntrySize > len(rest) {
			return h, entries, fmt.Errorf("wire: truncated pack at entry %d", i)
		}
		id, value, err := DecodeEntry(rest[off : off+EntrySize])
		if err != nil {
			return h, entries, err
		}
		entries = append(entries, PackEntry{ID: id, Value: value})
	}
	return h, entries, nil
}
