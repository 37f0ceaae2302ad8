// Package idalloc implements the id allocator: a monotonic 64-bit
// counter per id kind (Point, Segment). Counters are process-local, but
// NewAllocator range-scans the kv store's point: and seg: prefixes and
// fast-forwards each counter past the highest id already on disk, so a
// process that restarts against a populated store never reissues an id
// that is already in use. Ids are not safe to issue from more than one
// process against the same store.
package idalloc

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/spherical-ai/hybridstore/internal/kv"
)

// Kind distinguishes the two id spaces the hybrid store issues.
type Kind int

const (
	KindPoint Kind = iota
	KindSegment
)

// Allocator issues strictly increasing ids per Kind within one process.
type Allocator struct {
	point   atomic.Int64
	segment atomic.Int64
}

// NewAllocator builds an Allocator whose counters have already advanced
// past every id observed in store. Point ids are recovered from point:
// keys; segment ids are recovered from seg:out: keys, since every
// persisted segment carries a paired seg:in: entry with the same id and
// scanning one side is sufficient.
func NewAllocator(store kv.Store) (*Allocator, error) {
	a := &Allocator{}

	pointPairs, err := store.RangeScan("point:", "point:~")
	if err != nil {
		return nil, err
	}
	for _, p := range pointPairs {
		if id, ok := parseTrailingID(p.Key); ok {
			a.bumpPast(KindPoint, id)
		}
	}

	segPairs, err := store.RangeScan("seg:out:", "seg:out:~")
	if err != nil {
		return nil, err
	}
	for _, p := range segPairs {
		if id, ok := segmentIDFromRecord(store, p.Key); ok {
			a.bumpPast(KindSegment, id)
		}
	}

	return a, nil
}

// Next atomically issues the next id for kind.
func (a *Allocator) Next(kind Kind) int64 {
	switch kind {
	case KindSegment:
		return a.segment.Add(1)
	default:
		return a.point.Add(1)
	}
}

func (a *Allocator) bumpPast(kind Kind, observed int64) {
	counter := &a.point
	if kind == KindSegment {
		counter = &a.segment
	}
	for {
		cur := counter.Load()
		if observed <= cur {
			return
		}
		if counter.CompareAndSwap(cur, observed) {
			return
		}
	}
}

// parseTrailingID extracts the numeric id suffix of a "point:<id>" key.
func parseTrailingID(key string) (int64, bool) {
	const prefix = "point:"
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// segmentIDFromRecord reads the segment's own id out of its stored JSON
// record, since the segment id is not encoded in the seg:out: key itself
// (the key encodes fromId/toId, not the segment's id).
func segmentIDFromRecord(store kv.Store, key string) (int64, bool) {
	var rec struct {
		ID int64 `json:"id"`
	}
	ok, err := store.GetJSON(key, &rec)
	if err != nil || !ok {
		return 0, false
	}
	return rec.ID, true
}
