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

// Package raftpb holds the value types shared by the raft log core and its
// collaborators. The codec is hand maintained but wire compatible with
// raftpb.proto, so entries and snapshots can cross the transport boundary
// unchanged.
package raftpb

import (
	"encoding/binary"
	"errors"

	"github.com/gogo/protobuf/proto"
)

var (
	ErrIntOverflow   = errors.New("raftpb: integer overflow")
	ErrInvalidLength = errors.New("raftpb: negative length found during unmarshaling")
	ErrUnexpectedEOF = errors.New("raftpb: unexpected EOF")
)

type EntryType int32

const (
	EntryNormal     EntryType = 0
	EntryConfChange EntryType = 1
)

func (t EntryType) String() string {
	if t == EntryConfChange {
		return "EntryConfChange"
	}
	return "EntryNormal"
}

// Entry is one unit of replicated command data. Index is its position in the
// global log ordering, Term the leadership epoch it was proposed in. Entries
// are never mutated once created.
type Entry struct {
	Type  EntryType
	Term  uint64
	Index uint64
	Data  []byte
}

func (m *Entry) Reset()         { *m = Entry{} }
func (m *Entry) String() string { return proto.CompactTextString(m) }
func (*Entry) ProtoMessage()    {}

func (m *Entry) Size() int {
	n := 0
	if m.Type != 0 {
		n += 1 + sov(uint64(m.Type))
	}
	if m.Term != 0 {
		n += 1 + sov(m.Term)
	}
	if m.Index != 0 {
		n += 1 + sov(m.Index)
	}
	if l := len(m.Data); l > 0 {
		n += 1 + sov(uint64(l)) + l
	}
	return n
}

func (m *Entry) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	if m.Type != 0 {
		b = append(b, 0x08)
		b = binary.AppendUvarint(b, uint64(m.Type))
	}
	if m.Term != 0 {
		b = append(b, 0x10)
		b = binary.AppendUvarint(b, m.Term)
	}
	if m.Index != 0 {
		b = append(b, 0x18)
		b = binary.AppendUvarint(b, m.Index)
	}
	if len(m.Data) > 0 {
		b = append(b, 0x22)
		b = binary.AppendUvarint(b, uint64(len(m.Data)))
		b = append(b, m.Data...)
	}
	return b, nil
}

func (m *Entry) Unmarshal(data []byte) error {
	m.Reset()
	for len(data) > 0 {
		num, wire, rest, err := readKey(data)
		if err != nil {
			return err
		}
		data = rest
		switch {
		case num == 1 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Type, data = EntryType(v), rest
		case num == 2 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Term, data = v, rest
		case num == 3 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Index, data = v, rest
		case num == 4 && wire == 2:
			buf, rest, err := readBytes(data)
			if err != nil {
				return err
			}
			m.Data, data = buf, rest
		default:
			rest, err := skipField(wire, data)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}

// ConfState lists the voting members known at snapshot time.
type ConfState struct {
	Nodes []uint64
}

func (m *ConfState) Reset()         { *m = ConfState{} }
func (m *ConfState) String() string { return proto.CompactTextString(m) }
func (*ConfState) ProtoMessage()    {}

func (m *ConfState) Size() int {
	n := 0
	for _, v := range m.Nodes {
		n += 1 + sov(v)
	}
	return n
}

func (m *ConfState) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	for _, v := range m.Nodes {
		b = append(b, 0x08)
		b = binary.AppendUvarint(b, v)
	}
	return b, nil
}

func (m *ConfState) Unmarshal(data []byte) error {
	m.Reset()
	for len(data) > 0 {
		num, wire, rest, err := readKey(data)
		if err != nil {
			return err
		}
		data = rest
		if num == 1 && wire == 0 {
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Nodes, data = append(m.Nodes, v), rest
			continue
		}
		rest, err = skipField(wire, data)
		if err != nil {
			return err
		}
		data = rest
	}
	return nil
}

// SnapshotMetadata positions a snapshot in the log: Index/Term are those of
// the last entry the snapshot subsumes.
type SnapshotMetadata struct {
	ConfState ConfState
	Index     uint64
	Term      uint64
}

func (m *SnapshotMetadata) Reset()         { *m = SnapshotMetadata{} }
func (m *SnapshotMetadata) String() string { return proto.CompactTextString(m) }
func (*SnapshotMetadata) ProtoMessage()    {}

func (m *SnapshotMetadata) Size() int {
	n := 0
	if l := m.ConfState.Size(); l > 0 {
		n += 1 + sov(uint64(l)) + l
	}
	if m.Index != 0 {
		n += 1 + sov(m.Index)
	}
	if m.Term != 0 {
		n += 1 + sov(m.Term)
	}
	return n
}

func (m *SnapshotMetadata) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	if m.ConfState.Size() > 0 {
		sub, err := m.ConfState.Marshal()
		if err != nil {
			return nil, err
		}
		b = append(b, 0x0a)
		b = binary.AppendUvarint(b, uint64(len(sub)))
		b = append(b, sub...)
	}
	if m.Index != 0 {
		b = append(b, 0x10)
		b = binary.AppendUvarint(b, m.Index)
	}
	if m.Term != 0 {
		b = append(b, 0x18)
		b = binary.AppendUvarint(b, m.Term)
	}
	return b, nil
}

func (m *SnapshotMetadata) Unmarshal(data []byte) error {
	m.Reset()
	for len(data) > 0 {
		num, wire, rest, err := readKey(data)
		if err != nil {
			return err
		}
		data = rest
		switch {
		case num == 1 && wire == 2:
			buf, rest, err := readBytes(data)
			if err != nil {
				return err
			}
			if err := m.ConfState.Unmarshal(buf); err != nil {
				return err
			}
			data = rest
		case num == 2 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Index, data = v, rest
		case num == 3 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Term, data = v, rest
		default:
			rest, err := skipField(wire, data)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}

// Snapshot carries opaque state machine data plus the metadata placing it in
// the log. A snapshot logically precedes every entry that follows it.
type Snapshot struct {
	Data     []byte
	Metadata SnapshotMetadata
}

func (m *Snapshot) Reset()         { *m = Snapshot{} }
func (m *Snapshot) String() string { return proto.CompactTextString(m) }
func (*Snapshot) ProtoMessage()    {}

func (m *Snapshot) Size() int {
	n := 0
	if l := len(m.Data); l > 0 {
		n += 1 + sov(uint64(l)) + l
	}
	if l := m.Metadata.Size(); l > 0 {
		n += 1 + sov(uint64(l)) + l
	}
	return n
}

func (m *Snapshot) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	if len(m.Data) > 0 {
		b = append(b, 0x0a)
		b = binary.AppendUvarint(b, uint64(len(m.Data)))
		b = append(b, m.Data...)
	}
	if m.Metadata.Size() > 0 {
		sub, err := m.Metadata.Marshal()
		if err != nil {
			return nil, err
		}
		b = append(b, 0x12)
		b = binary.AppendUvarint(b, uint64(len(sub)))
		b = append(b, sub...)
	}
	return b, nil
}

func (m *Snapshot) Unmarshal(data []byte) error {
	m.Reset()
	for len(data) > 0 {
		num, wire, rest, err := readKey(data)
		if err != nil {
			return err
		}
		data = rest
		switch {
		case num == 1 && wire == 2:
			buf, rest, err := readBytes(data)
			if err != nil {
				return err
			}
			m.Data, data = buf, rest
		case num == 2 && wire == 2:
			buf, rest, err := readBytes(data)
			if err != nil {
				return err
			}
			if err := m.Metadata.Unmarshal(buf); err != nil {
				return err
			}
			data = rest
		default:
			rest, err := skipField(wire, data)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}

// HardState is the durable per-node election and commit state.
type HardState struct {
	Term   uint64
	Vote   uint64
	Commit uint64
}

func (m *HardState) Reset()         { *m = HardState{} }
func (m *HardState) String() string { return proto.CompactTextString(m) }
func (*HardState) ProtoMessage()    {}

func (m *HardState) Size() int {
	n := 0
	if m.Term != 0 {
		n += 1 + sov(m.Term)
	}
	if m.Vote != 0 {
		n += 1 + sov(m.Vote)
	}
	if m.Commit != 0 {
		n += 1 + sov(m.Commit)
	}
	return n
}

func (m *HardState) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	if m.Term != 0 {
		b = append(b, 0x08)
		b = binary.AppendUvarint(b, m.Term)
	}
	if m.Vote != 0 {
		b = append(b, 0x10)
		b = binary.AppendUvarint(b, m.Vote)
	}
	if m.Commit != 0 {
		b = append(b, 0x18)
		b = binary.AppendUvarint(b, m.Commit)
	}
	return b, nil
}

func (m *HardState) Unmarshal(data []byte) error {
	m.Reset()
	for len(data) > 0 {
		num, wire, rest, err := readKey(data)
		if err != nil {
			return err
		}
		data = rest
		switch {
		case num == 1 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Term, data = v, rest
		case num == 2 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Vote, data = v, rest
		case num == 3 && wire == 0:
			v, rest, err := readUvarint(data)
			if err != nil {
				return err
			}
			m.Commit, data = v, rest
		default:
			rest, err := skipField(wire, data)
			if err != nil {
				return err
			}
			data = rest
		}
	}
	return nil
}

func init() {
	proto.RegisterType((*Entry)(nil), "raftpb.Entry")
	proto.RegisterType((*ConfState)(nil), "raftpb.ConfState")
	proto.RegisterType((*SnapshotMetadata)(nil), "raftpb.SnapshotMetadata")
	proto.RegisterType((*Snapshot)(nil), "raftpb.Snapshot")
	proto.RegisterType((*HardState)(nil), "raftpb.HardState")
}

func sov(x uint64) (n int) {
	for {
		n++
		x >>= 7
		if x == 0 {
			return n
		}
	}
}

func readKey(data []byte) (num int, wire uint64, rest []byte, err error) {
	key, rest, err := readUvarint(data)
	if err != nil {
		return 0, 0, nil, err
	}
	return int(key >> 3), key & 7, rest, nil
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n == 0 {
		return 0, nil, ErrUnexpectedEOF
	}
	if n < 0 {
		return 0, nil, ErrIntOverflow
	}
	return v, data[n:], nil
}

func readBytes(data []byte) ([]byte, []byte, error) {
	l, rest, err := readUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if l > uint64(len(rest)) {
		return nil, nil, ErrUnexpectedEOF
	}
	buf := make([]byte, l)
	copy(buf, rest[:l])
	return buf, rest[l:], nil
}

func skipField(wire uint64, data []byte) ([]byte, error) {
	switch wire {
	case 0:
		_, rest, err := readUvarint(data)
		return rest, err
	case 1:
		if len(data) < 8 {
			return nil, ErrUnexpectedEOF
		}
		return data[8:], nil
	case 2:
		l, rest, err := readUvarint(data)
		if err != nil {
			return nil, err
		}
		if l > uint64(len(rest)) {
			return nil, ErrUnexpectedEOF
		}
		return rest[l:], nil
	case 5:
		if len(data) < 4 {
			return nil, ErrUnexpectedEOF
		}
		return data[4:], nil
	default:
		return nil, ErrInvalidLength
	}
}
