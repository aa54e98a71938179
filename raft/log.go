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
	"fmt"
	"math"

	"github.com/BruceZu/yaraft/code"
	"github.com/BruceZu/yaraft/log"
	"github.com/BruceZu/yaraft/raftpb"
	"github.com/dustin/go-humanize"
)

const noLimit = math.MaxUint64

//  log structure
//
//	snapshot/first.....applied.....committed......unstable.offset......last
//	--------|--------------storage---------------|--------unstable--------|

// RaftLog manages the sequence of entries this node believes are part of
// the replicated log. Recent entries live in the unstable buffer until the
// write path persists them; older entries are read back from Storage.
//
// RaftLog is owned by a single control loop and does no locking of its own.
type RaftLog struct {
	// storage contains all stable entries since the last snapshot.
	storage Storage

	// unstable contains all unstable entries and snapshot.
	// they will be saved into storage.
	unstable unstable

	// Index of highest log entry known to be committed (initialized to 0,
	// increases monotonically).
	committed uint64

	// Index of highest log entry applied to state machine (initialized to 0,
	// increases monotonically).
	// Invariant: applied <= committed.
	applied uint64

	// maxApplyEntsSize caps the total payload of one NextApplyEnts batch.
	maxApplyEntsSize uint64
}

// NewRaftLog recovers the log to the state it was at after the most recent
// compaction recorded in storage.
func NewRaftLog(storage Storage, maxApplyEntsSize uint64) *RaftLog {
	if storage == nil {
		log.Panicf("storage must not be nil")
	}
	l := &RaftLog{storage: storage, maxApplyEntsSize: maxApplyEntsSize}

	firstIndex, err := storage.FirstIndex()
	if err != nil {
		log.Panicf("storage first index is unavailable: %v", err)
	}
	lastIndex, err := storage.LastIndex()
	if err != nil {
		log.Panicf("storage last index is unavailable: %v", err)
	}

	l.unstable.offset = lastIndex + 1
	l.committed = firstIndex - 1
	l.applied = firstIndex - 1

	log.Debug("log recovered from storage").
		Uint64(code.FirstIndex, firstIndex).
		Uint64(code.LastIndex, lastIndex).
		Uint64(code.Committed, l.committed).
		Uint64(code.Applied, l.applied).
		Record()
	return l
}

func (l *RaftLog) String() string {
	return fmt.Sprintf("committed=%d, applied=%d, unstable.offset=%d, len(unstable.Entries)=%d",
		l.committed, l.applied, l.unstable.offset, len(l.unstable.entries))
}

func (l *RaftLog) CommitIndex() uint64 {
	return l.committed
}

func (l *RaftLog) AppliedIndex() uint64 {
	return l.applied
}

// IsUpToDate determines if the given (lastIndex, term) log is more up-to-date
// by comparing the index and term of the last entries in the existing logs.
// If the logs have last entries with different terms, then the log with the
// later term is more up-to-date. If the logs end with the same term, then
// whichever log has the larger lastIndex is more up-to-date. (Raft paper 5.4.1)
func (l *RaftLog) IsUpToDate(index, term uint64) bool {
	return term > l.LastTerm() || (term == l.LastTerm() && index >= l.LastIndex())
}

// Term returns the term of the entry at index i. The valid range is
// [FirstIndex()-1, LastIndex()]: the lower bound is the dummy entry just
// before the retained log.
func (l *RaftLog) Term(i uint64) (uint64, error) {
	dummyIndex := l.FirstIndex() - 1
	if i < dummyIndex || i > l.LastIndex() {
		return 0, ErrOutOfBound
	}

	if t, ok := l.unstable.maybeTerm(i); ok {
		return t, nil
	}

	t, err := l.storage.Term(i)
	if err == nil {
		return t, nil
	}
	if err == ErrCompacted || err == ErrOutOfBound {
		return 0, err
	}
	log.Panicf("unexpected error from storage.Term: %v", err)
	return 0, err
}

func (l *RaftLog) FirstIndex() uint64 {
	// unstable snapshot always precedes all the entries in RaftLog.
	if i, ok := l.unstable.maybeFirstIndex(); ok {
		return i
	}
	index, err := l.storage.FirstIndex()
	if err != nil {
		log.Panicf("storage first index is unavailable: %v", err)
	}
	return index
}

func (l *RaftLog) LastIndex() uint64 {
	if i, ok := l.unstable.maybeLastIndex(); ok {
		return i
	}
	index, err := l.storage.LastIndex()
	if err != nil {
		log.Panicf("storage last index is unavailable: %v", err)
	}
	return index
}

func (l *RaftLog) LastTerm() uint64 {
	t, err := l.Term(l.LastIndex())
	if err != nil {
		log.Panicf("unexpected error when getting the last term (%v)", err)
	}
	return t
}

// HasEntry reports whether the log holds an entry matching (i, term). Lookup
// failures never propagate; a missing or compacted entry is simply no match.
func (l *RaftLog) HasEntry(i, term uint64) bool {
	t, err := l.Term(i)
	if err != nil {
		return false
	}
	return t == term
}

// Append stages ents into the unstable buffer. Entries must not conflict
// with committed history; that would risk divergence from the committed log,
// so it stops the node.
func (l *RaftLog) Append(ents []raftpb.Entry) {
	if len(ents) == 0 {
		return
	}
	if after := ents[0].Index; after <= l.committed {
		log.Panicf("entry %d conflict with committed entry [committed(%d)]", after, l.committed)
	}
	l.unstable.truncateAndAppend(ents)
}

// CommitTo advances the commit index to tocommit. Moving it past the end of
// the log means the log was truncated, corrupted, or lost.
func (l *RaftLog) CommitTo(tocommit uint64) {
	// never decrease commit
	if l.committed < tocommit {
		if l.LastIndex() < tocommit {
			log.Panicf("tocommit(%d) is out of range [lastIndex(%d)]. Was the raft log corrupted, truncated, or lost?",
				tocommit, l.LastIndex())
		}
		l.committed = tocommit
	}
}

// ApplyTo records that entries up through i have been handed to the state
// machine. i must stay within [applied, committed].
func (l *RaftLog) ApplyTo(i uint64) {
	if i == 0 {
		log.Panicf("applied index must not be 0")
	}
	if l.committed < i || i < l.applied {
		log.Panicf("applied(%d) is out of range [prevApplied(%d), committed(%d)]", i, l.applied, l.committed)
	}
	l.applied = i
}

// FindConflict finds the index of the first conflicting entry between the
// existing entries and ents. An entry conflicts if it has the same index but
// a different term, or lies beyond the existing log. It returns 0 if the
// existing log already contains every given entry.
// The indices of ents MUST be continuously increasing and the first entry's
// index MUST equal the position the caller resumed comparison at.
func (l *RaftLog) FindConflict(ents []raftpb.Entry) uint64 {
	for _, e := range ents {
		if !l.HasEntry(e.Index, e.Term) {
			if e.Index <= l.LastIndex() {
				log.Infof("found conflict at index %d [existing term: %d, conflicting term: %d]",
					e.Index, l.ZeroTermOnErrCompacted(e.Index), e.Term)
			}
			return e.Index
		}
	}
	return 0
}

// MaybeAppend is the log-matching handshake driven by replicated entries.
// It returns (0, false), mutating nothing, unless the log contains an entry
// matching (prevLogIndex, prevLogTerm); the caller answers that with a
// rejection so the leader retries from an earlier prevLogIndex. On success
// the conflicting suffix of ents (if any) overwrites the local log and
// newLastIndex = prevLogIndex + len(ents).
func (l *RaftLog) MaybeAppend(prevLogIndex, prevLogTerm uint64, ents []raftpb.Entry) (newLastIndex uint64, ok bool) {
	if !l.HasEntry(prevLogIndex, prevLogTerm) {
		return 0, false
	}

	newLastIndex = prevLogIndex + uint64(len(ents))
	if len(ents) > 0 {
		if ents[0].Index != prevLogIndex+1 {
			// The protocol layer is expected to prevent this; not fatal here.
			log.Errorf("unexpected gap between prevlog and newlog [newlog: %d, prevlog: %d]",
				ents[0].Index, prevLogIndex)
		}
		if ci := l.FindConflict(ents); ci != 0 {
			l.Append(ents[ci-ents[0].Index:])
		}
	}
	return newLastIndex, true
}

// Entries returns entries in [lo,hi), capped by the cumulative payload
// budget maxSize. Callers asking for a size-bounded result must tolerate
// truncation starting from the stable portion.
func (l *RaftLog) Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	if err := l.mustCheckOutOfBounds(lo, hi); err != nil {
		return nil, err
	}
	if lo == hi {
		return nil, nil
	}

	var ents []raftpb.Entry
	offset := l.unstable.offset

	// retrieve from storage
	if lo < offset {
		stored, err := l.storage.Entries(lo, min(hi, offset), maxSize)
		if err == ErrCompacted {
			return nil, err
		} else if err != nil {
			log.Panicf("unexpected error from storage.Entries: %v", err)
		}

		// check if stored has reached the size limitation
		if uint64(len(stored)) < min(hi, offset)-lo {
			return stored, nil
		}
		ents = stored
	}

	// retrieve from unstable
	if hi > offset {
		used := entsSize(ents)
		if used >= maxSize && len(ents) > 0 {
			return ents, nil
		}
		ents = l.unstable.copyTo(ents, max(lo, offset), hi, maxSize-used)
	}
	return ents, nil
}

// AllEntries returns all the entries the log currently retains.
func (l *RaftLog) AllEntries() []raftpb.Entry {
	ents, err := l.Entries(l.FirstIndex(), l.LastIndex()+1, noLimit)
	if err == nil {
		return ents
	}
	if err == ErrCompacted {
		// try again if there was a racing compaction
		return l.AllEntries()
	}
	log.Panicf("unexpected error when getting all entries (%v)", err)
	return nil
}

// NextApplyEnts returns the committed but not yet applied entries, capped by
// the apply batch budget.
func (l *RaftLog) NextApplyEnts() []raftpb.Entry {
	off := max(l.applied+1, l.FirstIndex())
	if l.committed+1 > off {
		ents, err := l.Entries(off, l.committed+1, l.maxApplyEntsSize)
		if err != nil {
			log.Panicf("unexpected error when getting unapplied entries (%v)", err)
		}
		return ents
	}
	return nil
}

func (l *RaftLog) HasNextApplyEnts() bool {
	off := max(l.applied+1, l.FirstIndex())
	return l.committed+1 > off
}

// ZeroTermOnErrCompacted returns the term of entry i, or 0 if i has been
// compacted away. A term of 0 is never a valid real term, signalling
// "unknown".
func (l *RaftLog) ZeroTermOnErrCompacted(i uint64) uint64 {
	t, err := l.Term(i)
	if err == nil {
		return t
	}
	if err == ErrCompacted {
		return 0
	}
	log.Panicf("fail to get term for index: %d, error: %v, last_index: %d", i, err, l.LastIndex())
	return 0
}

// Restore resets the log onto snap. This is how a node that has fallen far
// behind catches up without replaying every intervening entry.
// REQUIRED: snap.Metadata.Index > CommitIndex().
// REQUIRED: no existing entry matches (snap.Metadata.Index, snap.Metadata.Term).
func (l *RaftLog) Restore(snap raftpb.Snapshot) {
	log.Info("log starts to restore snapshot").
		Str("log", l.String()).
		Uint64(code.SnapIndex, snap.Metadata.Index).
		Uint64(code.SnapTerm, snap.Metadata.Term).
		Str(code.SnapSize, humanize.IBytes(uint64(len(snap.Data)))).
		Record()
	l.committed = snap.Metadata.Index
	l.unstable.restore(snap)
}

// Snapshot returns the pending unstable snapshot if any, else the most
// recent snapshot in storage.
func (l *RaftLog) Snapshot() (raftpb.Snapshot, error) {
	if l.unstable.snapshot != nil {
		return *l.unstable.snapshot, nil
	}
	return l.storage.Snapshot()
}

// StableTo is called by the write path once entries up through (i, t) are
// durable, so the unstable buffer can release them.
func (l *RaftLog) StableTo(i, t uint64) {
	l.unstable.stableTo(i, t)
}

// StableSnapTo releases the pending snapshot once it has been installed
// into storage.
func (l *RaftLog) StableSnapTo(i uint64) {
	l.unstable.stableSnapTo(i)
}

// l.FirstIndex() <= lo <= hi <= l.LastIndex()+1
func (l *RaftLog) mustCheckOutOfBounds(lo, hi uint64) error {
	if lo > hi {
		log.Panicf("invalid slice %d > %d", lo, hi)
	}
	fi := l.FirstIndex()
	if lo < fi {
		return ErrCompacted
	}
	if hi > l.LastIndex()+1 {
		log.Panicf("slice[%d,%d) out of bound [%d,%d]", lo, hi, fi, l.LastIndex())
	}
	return nil
}

func limitSize(ents []raftpb.Entry, maxSize uint64) []raftpb.Entry {
	if len(ents) == 0 {
		return ents
	}
	size := ents[0].Size()
	var limit int
	for limit = 1; limit < len(ents); limit++ {
		size += ents[limit].Size()
		if uint64(size) > maxSize {
			break
		}
	}
	return ents[:limit]
}

func entsSize(ents []raftpb.Entry) uint64 {
	var size uint64
	for i := range ents {
		size += uint64(ents[i].Size())
	}
	return size
}
