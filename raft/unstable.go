// Copyright 2015 The etcd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package raft

import (
	"github.com/BruceZu/yaraft/log"
	"github.com/BruceZu/yaraft/raftpb"
)

// unstable stages entries and at most one snapshot that have not yet been
// confirmed durable. entries[i] has raft log position i+offset.
// Note that unstable.offset may be less than the highest log
// position in storage; this means that the next write to storage
// might need to truncate the log before persisting unstable.entries.
type unstable struct {
	// the incoming unstable snapshot, if any.
	snapshot *raftpb.Snapshot

	// all entries that have not yet been written to storage.
	entries []raftpb.Entry

	offset uint64
}

// maybeFirstIndex returns the index of the first possible entry in entries
// if it has a snapshot.
func (u *unstable) maybeFirstIndex() (uint64, bool) {
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index + 1, true
	}
	return 0, false
}

// maybeLastIndex returns the last index if it has at least one
// unstable entry or snapshot.
func (u *unstable) maybeLastIndex() (uint64, bool) {
	if l := len(u.entries); l != 0 {
		return u.offset + uint64(l) - 1, true
	}
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index, true
	}
	return 0, false
}

// maybeTerm returns the term of the entry at index i, if there is any.
// A false result signals the caller to consult Storage.
func (u *unstable) maybeTerm(i uint64) (uint64, bool) {
	if i < u.offset {
		if u.snapshot != nil && u.snapshot.Metadata.Index == i {
			return u.snapshot.Metadata.Term, true
		}
		return 0, false
	}

	last, ok := u.maybeLastIndex()
	if !ok || i > last {
		return 0, false
	}
	return u.entries[i-u.offset].Term, true
}

// stableTo shrinks the buffer once the write path has persisted entries up
// through index i at term t.
func (u *unstable) stableTo(i, t uint64) {
	gt, ok := u.maybeTerm(i)
	if !ok {
		return
	}
	// if i < offset, term is matched with the snapshot
	// only update the unstable entries if term is matched with
	// an unstable entry.
	if gt == t && i >= u.offset {
		u.entries = u.entries[i+1-u.offset:]
		u.offset = i + 1
	}
}

func (u *unstable) stableSnapTo(i uint64) {
	if u.snapshot != nil && u.snapshot.Metadata.Index == i {
		u.snapshot = nil
	}
}

// restore clears the buffer and stages snap as the pending snapshot. The
// prior contents are discarded unconditionally: the caller guarantees the
// snapshot is at least as advanced as anything buffered.
func (u *unstable) restore(snap raftpb.Snapshot) {
	u.offset = snap.Metadata.Index + 1
	u.entries = nil
	u.snapshot = &snap
}

// truncateAndAppend keeps the buffer a contiguous run. Required: no hole
// between the buffered entries and ents.
func (u *unstable) truncateAndAppend(ents []raftpb.Entry) {
	after := ents[0].Index
	switch {
	case after == u.offset+uint64(len(u.entries)):
		// after is the next index in the u.entries, directly append
		u.entries = append(u.entries, ents...)
	case after <= u.offset:
		log.Infof("replace the unstable entries from index %d", after)
		// The log is being truncated to before our current offset
		// portion, so set the offset and replace the entries
		u.offset = after
		u.entries = append([]raftpb.Entry{}, ents...)
	default:
		// offset < after < offset+len(entries)
		log.Infof("truncate the unstable entries before index %d", after)
		u.entries = append([]raftpb.Entry{}, u.entries[:after-u.offset]...)
		u.entries = append(u.entries, ents...)
	}
}

// copyTo appends the buffered sub-range [lo,hi) onto ents, stopping before
// the entry that would push the cumulative payload past maxSize.
func (u *unstable) copyTo(ents []raftpb.Entry, lo, hi, maxSize uint64) []raftpb.Entry {
	u.mustCheckOutOfBounds(lo, hi)
	var size uint64
	for i := lo; i < hi; i++ {
		e := u.entries[i-u.offset]
		size += uint64(e.Size())
		if size > maxSize {
			break
		}
		ents = append(ents, e)
	}
	return ents
}

// u.offset <= lo <= hi <= u.offset+len(u.entries)
func (u *unstable) mustCheckOutOfBounds(lo, hi uint64) {
	if lo > hi {
		log.Panicf("invalid unstable.slice %d > %d", lo, hi)
	}
	upper := u.offset + uint64(len(u.entries))
	if lo < u.offset || hi > upper {
		log.Panicf("unstable.slice[%d,%d) out of bound [%d,%d]", lo, hi, u.offset, upper)
	}
}
