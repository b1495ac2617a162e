// Package wire serializes sensor snapshots into the on-wire forms consumed
// by stream sessions (JSON/TXT/RAW, spec.md §6) and the datagram pack
// layout used by the UDP broadcaster (spec.md §4.7, §6).
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/un9021/uniset2/sm"
)

// Format is the on-wire encoding a stream session negotiated at handshake
// time (spec.md §3 RespondFormat).
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatTXT
	FormatRAW
)

// ParseFormat maps the handshake query string's format= value; an
// unrecognized value yields FormatUnknown, which fails the handshake with
// HTTP 400 per spec.md §3.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "txt":
		return FormatTXT
	case "raw":
		return FormatRAW
	default:
		return FormatUnknown
	}
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatTXT:
		return "txt"
	case FormatRAW:
		return "raw"
	default:
		return "unknown"
	}
}

type calibrationWire struct {
	CMin      int64 `json:"cmin"`
	CMax      int64 `json:"cmax"`
	RMin      int64 `json:"rmin"`
	RMax      int64 `json:"rmax"`
	Precision int   `json:"precision"`
}

// jsonNotification mirrors spec.md §6's JSON field list exactly.
type jsonNotification struct {
	Error       string          `json:"error"`
	ID          sm.SensorId     `json:"id"`
	Value       int64           `json:"value"`
	Name        string          `json:"name"`
	SMTVSec     int64           `json:"sm_tv_sec"`
	SMTVNsec    int64           `json:"sm_tv_nsec"`
	Type        string          `json:"type"`
	Undefined   bool            `json:"undefined"`
	Supplier    sm.SensorId     `json:"supplier"`
	TVSec       int64           `json:"tv_sec"`
	TVNsec      int64           `json:"tv_nsec"`
	Node        int32           `json:"node"`
	Calibration calibrationWire `json:"calibration"`
}

// Event is everything a serializer needs beyond the raw snapshot: the
// short name (from the directory) and a synthetic error string (from a
// failed registry reconcile), which share the same wire shape as a
// normal notification but with Undefined=true and Err populated.
type Event struct {
	Snapshot sm.Snapshot
	Name     string
	Err      string
}

// EncodeJSON renders ev per spec.md §6's JSON object.
func EncodeJSON(ev Event) ([]byte, error) {
	s := ev.Snapshot
	n := jsonNotification{
		Error:     ev.Err,
		ID:        s.ID,
		Value:     s.Value,
		Name:      ev.Name,
		SMTVSec:   s.SMTime.Unix(),
		SMTVNsec:  int64(s.SMTime.Nanosecond()),
		Type:      s.Kind.String(),
		Undefined: s.Undefined,
		Supplier:  s.Supplier,
		TVSec:     s.TMTime.Unix(),
		TVNsec:    int64(s.TMTime.Nanosecond()),
		Node:      s.Node,
		Calibration: calibrationWire{
			CMin:      s.Calibration.CalMin,
			CMax:      s.Calibration.CalMax,
			RMin:      s.Calibration.RawMin,
			RMax:      s.Calibration.RawMax,
			Precision: s.Calibration.Precision,
		},
	}
	return json.Marshal(n)
}

// DecodeJSON reads back id, value, undefined, supplier, node, name and
// error from EncodeJSON's output, used by round-trip tests (spec.md §8:
// "JSON serialization... field-wise equality"). Timestamps, type and
// calibration are not decoded.
func DecodeJSON(b []byte) (Event, error) {
	var n jsonNotification
	if err := json.Unmarshal(b, &n); err != nil {
		return Event{}, err
	}
	return Event{
		Snapshot: sm.Snapshot{
			ID:        n.ID,
			Value:     n.Value,
			Undefined: n.Undefined,
			Supplier:  n.Supplier,
			Node:      n.Node,
		},
		Name: n.Name,
		Err:  n.Error,
	}, nil
}

// EncodeTXT renders "<human-time>(<nanos>) id=<id> [error=<msg>|value=<v>]\n"
// per spec.md §6.
func EncodeTXT(ev Event) []byte {
	s := ev.Snapshot
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s(%d) id=%d ", s.SMTime.Format("2006-01-02 15:04:05"), s.SMTime.Nanosecond(), s.ID)
	if ev.Err != "" {
		fmt.Fprintf(&buf, "error=%s\n", ev.Err)
	} else {
		fmt.Fprintf(&buf, "value=%d\n", s.Value)
	}
	return buf.Bytes()
}

// EncodeRAW renders the binary snapshot payload exactly as laid out by V:
// fixed-width fields in declaration order, no framing. This is the same
// {id int32, value int64} shape as the datagram entry, reused here for a
// single-sensor stream frame (spec.md §6: "binary snapshot payload as
// laid out by V").
func EncodeRAW(ev Event) []byte {
	return encodeEntry(ev.Snapshot.ID, ev.Snapshot.Value)
}
