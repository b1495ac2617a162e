// Package directory builds SensorDirectory (D): the immutable, startup-time
// snapshot of which sensors a gateway instance cares about and where each
// one lives in the datagram pack layout (spec.md §4.1).
package directory

import (
	"fmt"
	"strconv"

	liberr "github.com/un9021/uniset2/errors"
	"github.com/un9021/uniset2/sm"
)

// Record is one declarative configuration entry: a candidate sensor the
// directory may or may not admit, depending on the configured filters.
type Record struct {
	Name   string
	ID     string // numeric id as configured, may be empty
	Fields map[string]string
}

// Entry is one admitted, resolved directory row.
type Entry struct {
	ID          sm.SensorId
	PackPos     int // index in the datagram body; -1 when unused (stream variant)
	Name        string
}

// Filter is the admission rule of spec.md §4.1: field-presence when Value
// is empty, field-equality otherwise. A zero Filter admits everything.
type Filter struct {
	Field string
	Value string
}

func (f Filter) admits(r Record) bool {
	if f.Field == "" {
		return true
	}

	v, ok := r.Fields[f.Field]
	if !ok {
		return false
	}

	if f.Value == "" {
		return v != ""
	}

	return v == f.Value
}

// Resolver looks up a SensorId by short name; it is the directory's only
// collaboration with SM/configuration, kept narrow so Build can be tested
// without a real SM.
type Resolver interface {
	ResolveName(name string) (sm.SensorId, bool)
}

// Directory is the immutable (SensorId, packPosition) sequence resolved
// from configuration, in declaration order.
type Directory struct {
	entries []Entry
	byID    map[sm.SensorId]int
}

// Build scans records in declaration order, applies filter, and resolves
// each admitted record's SensorId either from its numeric id or, failing
// that, from its short name via resolver. A record whose id cannot be
// resolved is a configuration error and is skipped (not fatal to the
// whole directory), matching spec.md §4.1.
func Build(records []Record, filter Filter, resolver Resolver, assignPackPositions bool) (*Directory, []error) {
	d := &Directory{byID: make(map[sm.SensorId]int)}
	var skipped []error

	pos := 0
	for _, r := range records {
		if !filter.admits(r) {
			continue
		}

		id, ok := resolveID(r, resolver)
		if !ok {
			skipped = append(skipped, liberr.ErrConfig.ErrorParent(
				fmt.Errorf("directory: cannot resolve sensor id for record %q", r.Name)))
			continue
		}

		packPos := -1
		if assignPackPositions {
			packPos = pos
			pos++
		}

		d.byID[id] = len(d.entries)
		d.entries = append(d.entries, Entry{ID: id, PackPos: packPos, Name: r.Name})
	}

	return d, skipped
}

func resolveID(r Record, resolver Resolver) (sm.SensorId, bool) {
	if r.ID != "" {
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil {
			return sm.SensorId(n), true
		}
	}

	if resolver == nil {
		return sm.NoSensor, false
	}

	return resolver.ResolveName(r.Name)
}

// Entries returns the admitted sequence in declaration order.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lookup resolves a SensorId to its declaration-order entry, replacing the
// iterator-into-a-growing-list pattern flagged in spec.md §9 with a stable
// map lookup resolved fresh on every use.
func (d *Directory) Lookup(id sm.SensorId) (Entry, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

func (d *Directory) Len() int { return len(d.entries) }
