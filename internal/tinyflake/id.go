package tinyflake

import "encoding/binary"

const (
	TimestampBits = 30
	SequenceBits  = 8
	NodeIDBits    = 2

	MaxTimestamp = 1<<TimestampBits - 1
	MaxSequence  = 1<<SequenceBits - 1
	MaxNodeID    = 1<<NodeIDBits - 1

	sequenceShift  = NodeIDBits
	timestampShift = SequenceBits + NodeIDBits
)

// ID is a 40-bit identifier: timestamp, sequence and node id packed most-significant-first.
type ID uint64

func newID(timestamp uint32, sequence, nodeID uint8) ID {
	return ID(uint64(timestamp)<<timestampShift | uint64(sequence)<<sequenceShift | uint64(nodeID))
}

// Timestamp returns the seconds elapsed since the generator's epoch.
func (id ID) Timestamp() uint32 {
	return uint32(uint64(id) >> timestampShift & MaxTimestamp)
}

// Sequence returns the in-second sequence number.
func (id ID) Sequence() uint8 {
	return uint8(uint64(id) >> sequenceShift & MaxSequence)
}

// NodeID returns the node that allocated the id.
func (id ID) NodeID() uint8 {
	return uint8(uint64(id) & MaxNodeID)
}

// Bytes returns the id as 8 big-endian bytes; the three high bytes are always zero.
func (id ID) Bytes() [8]byte {
	var b [8]byte

	binary.BigEndian.PutUint64(b[:], uint64(id))

	return b
}
