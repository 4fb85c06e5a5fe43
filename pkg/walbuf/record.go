package walbuf

import "encoding/binary"

// RecordType is the closed set of mutation kinds a LogRecord can carry.
// Payload shape is identical across every type, so no runtime dispatch is
// needed beyond this single tag byte.
type RecordType uint8

const (
	RecordNone RecordType = iota
	RecordInsertEntity
	RecordDeleteEntity
	RecordFlush
)

func (t RecordType) String() string {
	switch t {
	case RecordNone:
		return "None"
	case RecordInsertEntity:
		return "InsertEntity"
	case RecordDeleteEntity:
		return "DeleteEntity"
	case RecordFlush:
		return "Flush"
	default:
		return "Unknown"
	}
}

// headerSize is the bit-exact, little-endian, unpadded on-disk header
// size. Every field's offset is fixed; implementations must produce and
// consume exactly this layout.
//
//	offset  size  field
//	  0      8    lsn                (uint64)
//	  8      1    type               (uint8)
//	  9      2    collection_id_size (uint16)
//	 11      2    partition_tag_size (uint16)
//	 13      4    vector_num         (uint32)
//	 17      4    data_size          (uint32)
const headerSize = 21

const idSize = 8 // sizeof(uint64) entity ID

// LogRecord is the logical, in-memory form of one WAL entry. Callers fill
// every field except LSN, which Append assigns.
type LogRecord struct {
	Type          RecordType
	LSN           LSN
	CollectionID  []byte
	PartitionTag  []byte
	IDs           []uint64
	Data          []byte
}

// Length reports the number of entity IDs carried by the record.
func (r *LogRecord) Length() uint32 {
	return uint32(len(r.IDs))
}

// DataSize reports the payload byte count.
func (r *LogRecord) DataSize() uint32 {
	return uint32(len(r.Data))
}

// RecordSize returns the total on-disk size of r: fixed header plus the
// variable tail (collection_id, partition_tag, ids, data).
func RecordSize(r *LogRecord) uint32 {
	return headerSize +
		uint32(len(r.CollectionID)) +
		uint32(len(r.PartitionTag)) +
		r.Length()*idSize +
		r.DataSize()
}

// encodeHeader writes the 21-byte fixed header for r into dst, using lsn as
// the record's assigned LSN rather than r.LSN (the caller computes the LSN
// before serialization; see Buffer.Append).
func encodeHeader(dst []byte, r *LogRecord, lsn LSN) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(lsn))
	dst[8] = byte(r.Type)
	binary.LittleEndian.PutUint16(dst[9:11], uint16(len(r.CollectionID)))
	binary.LittleEndian.PutUint16(dst[11:13], uint16(len(r.PartitionTag)))
	binary.LittleEndian.PutUint32(dst[13:17], r.Length())
	binary.LittleEndian.PutUint32(dst[17:21], r.DataSize())
}

// decodedHeader is the parsed form of the fixed 21-byte header.
type decodedHeader struct {
	lsn              LSN
	recordType       RecordType
	collectionIDSize uint16
	partitionTagSize uint16
	vectorNum        uint32
	dataSize         uint32
}

func decodeHeader(src []byte) decodedHeader {
	return decodedHeader{
		lsn:              LSN(binary.LittleEndian.Uint64(src[0:8])),
		recordType:       RecordType(src[8]),
		collectionIDSize: binary.LittleEndian.Uint16(src[9:11]),
		partitionTagSize: binary.LittleEndian.Uint16(src[11:13]),
		vectorNum:        binary.LittleEndian.Uint32(src[13:17]),
		dataSize:         binary.LittleEndian.Uint32(src[17:21]),
	}
}

// encodeRecord serializes r into dst starting at offset 0, using lsn as the
// record's self-locating LSN. dst must be at least RecordSize(r) bytes.
func encodeRecord(dst []byte, r *LogRecord, lsn LSN) {
	encodeHeader(dst[:headerSize], r, lsn)
	off := headerSize

	if len(r.CollectionID) > 0 {
		copy(dst[off:], r.CollectionID)
		off += len(r.CollectionID)
	}
	if len(r.PartitionTag) > 0 {
		copy(dst[off:], r.PartitionTag)
		off += len(r.PartitionTag)
	}
	for _, id := range r.IDs {
		binary.LittleEndian.PutUint64(dst[off:off+idSize], id)
		off += idSize
	}
	if len(r.Data) > 0 {
		copy(dst[off:], r.Data)
	}
}

// DecodeRecordAt parses one record starting at slab[offset] into out. It
// is the exported form of decodeRecord, for tooling that reads a segment
// file directly rather than through a Buffer's live slabs.
func DecodeRecordAt(slab []byte, offset uint32, out *LogRecord) {
	decodeRecord(slab, offset, out)
}

// PeekRecordSize reports the on-disk size of the record starting at
// slab[offset] by reading only its fixed header, without materializing
// the record itself. It returns false if fewer than headerSize bytes
// remain, letting a scanner detect a truncated tail record left by a
// crash mid-write.
func PeekRecordSize(slab []byte, offset uint32) (uint32, bool) {
	total := uint32(len(slab))
	if offset > total || total-offset < headerSize {
		return 0, false
	}
	h := decodeHeader(slab[offset : offset+headerSize])
	size := headerSize + uint32(h.collectionIDSize) + uint32(h.partitionTagSize) + h.vectorNum*idSize + h.dataSize
	if total-offset < size {
		return 0, false
	}
	return size, true
}

// decodeRecord parses one record starting at slab[offset] and fills out.
// The returned byte views (CollectionID, PartitionTag, Data) alias slab
// directly; per spec.md §9 their lifetime ends at the next Next or Reset
// call on the buffer that owns slab. Copy them at the consumer boundary if
// they must outlive that call. IDs is a freshly allocated copy and does
// not alias slab.
func decodeRecord(slab []byte, offset uint32, out *LogRecord) {
	h := decodeHeader(slab[offset : offset+headerSize])
	out.Type = h.recordType
	out.LSN = h.lsn

	pos := offset + headerSize

	if h.collectionIDSize != 0 {
		out.CollectionID = slab[pos : pos+uint32(h.collectionIDSize)]
		pos += uint32(h.collectionIDSize)
	} else {
		out.CollectionID = nil
	}

	if h.partitionTagSize != 0 {
		out.PartitionTag = slab[pos : pos+uint32(h.partitionTagSize)]
		pos += uint32(h.partitionTagSize)
	} else {
		out.PartitionTag = nil
	}

	if h.vectorNum != 0 {
		ids := make([]uint64, h.vectorNum)
		for i := range ids {
			ids[i] = binary.LittleEndian.Uint64(slab[pos : pos+idSize])
			pos += idSize
		}
		out.IDs = ids
	} else {
		out.IDs = nil
	}

	if h.dataSize != 0 {
		out.Data = slab[pos : pos+h.dataSize]
	} else {
		out.Data = nil
	}
}
