package wire

import (
	"testing"
	"time"

	"github.com/un9021/uniset2/sm"
)

func TestJSONRoundTripPreservesCoreFields(t *testing.T) {
	ev := Event{
		Snapshot: sm.Snapshot{
			ID:        42,
			Value:     7,
			Undefined: false,
			Supplier:  1,
			Node:      3,
			SMTime:    time.Unix(1000, 0),
		},
		Name: "T1",
	}

	b, err := EncodeJSON(ev)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeJSON(b)
	if err != nil {
		t.Fatal(err)
	}

	if got.Snapshot.ID != 42 || got.Snapshot.Value != 7 || got.Snapshot.Node != 3 || got.Snapshot.Undefined != false {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestJSONNotificationHasEmptyErrorOnSuccess(t *testing.T) {
	ev := Event{Snapshot: sm.Snapshot{ID: 42, Value: 7, SMTime: time.Unix(1000, 0)}}
	b, _ := EncodeJSON(ev)

	got, _ := DecodeJSON(b)
	if got.Err != "" {
		t.Fatalf("expected empty error, got %q", got.Err)
	}
	if got.Snapshot.ID != 42 || got.Snapshot.Value != 7 {
		t.Fatalf("expected id==42 value==7, got %+v", got.Snapshot)
	}
}

func TestTXTFormatsValue(t *testing.T) {
	ev := Event{Snapshot: sm.Snapshot{ID: 5, Value: 99, SMTime: time.Unix(1000, 0)}}
	out := string(EncodeTXT(ev))
	if out == "" {
		t.Fatalf("expected non-empty text frame")
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := map[string]Format{"json": FormatJSON, "txt": FormatTXT, "raw": FormatRAW, "bogus": FormatUnknown}
	for s, want := range cases {
		if got := ParseFormat(s); got != want {
			t.Fatalf("ParseFormat(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	h := Header{NodeID: 1, ProcID: 2, DCount: 3}
	got, err := DecodeHeader(EncodeHeader(h))
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("expected %+v, got %+v", h, got)
	}
}

func TestEncodeDecodePackRoundTrip(t *testing.T) {
	entries := []PackEntry{{ID: 10, Value: 5}, {ID: 11, Value: 6}}
	buf := EncodePack(7, 8, entries)

	h, got, err := DecodePack(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.NodeID != 7 || h.ProcID != 8 || h.DCount != 2 {
		t.Fatalf("unexpected header: %+v", h)
	}
	if len(got) != 2 || got[0] != entries[0] || got[1] != entries[1] {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestDecodePackDetectsTruncation(t *testing.T) {
	buf := EncodePack(1, 1, []PackEntry{{ID: 1, Value: 1}, {ID: 2, Value: 2}})
	truncated := buf[:HeaderSize+EntrySize] // header + one full entry, second entry missing

	// the header still says dcount 2 but only one entry's worth of bytes follows
	h, _ := DecodeHeader(truncated)
	if h.DCount != 2 {
		t.Fatalf("expected dcount 2 in truncated header, got %d", h.DCount)
	}

	_, _, err := DecodePack(truncated)
	if err == nil {
		t.Fatalf("expected truncation error")
	}
}
