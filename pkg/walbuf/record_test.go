package walbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordSize(t *testing.T) {
	r := &LogRecord{
		Type:         RecordInsertEntity,
		CollectionID: []byte("coll-1"),
		PartitionTag: []byte("p0"),
		IDs:          []uint64{1, 2, 3},
		Data:         make([]byte, 100),
	}

	want := uint32(headerSize + len("coll-1") + len("p0") + 3*idSize + 100)
	require.Equal(t, want, RecordSize(r))
}

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	r := &LogRecord{
		Type:         RecordInsertEntity,
		CollectionID: []byte("orders"),
		PartitionTag: []byte("2024"),
		IDs:          []uint64{10, 20, 30, 40},
		Data:         []byte("vector-payload-bytes"),
	}

	n := RecordSize(r)
	buf := make([]byte, n)
	lsn := PackLSN(0, n)
	encodeRecord(buf, r, lsn)

	var got LogRecord
	decodeRecord(buf, 0, &got)

	require.Equal(t, r.Type, got.Type)
	require.Equal(t, lsn, got.LSN)
	require.Equal(t, r.CollectionID, got.CollectionID)
	require.Equal(t, r.PartitionTag, got.PartitionTag)
	require.Equal(t, r.IDs, got.IDs)
	require.Equal(t, r.Data, got.Data)
}

func TestDecodeRecordEmptyFields(t *testing.T) {
	r := &LogRecord{Type: RecordFlush}
	n := RecordSize(r)
	require.Equal(t, uint32(headerSize), n)

	buf := make([]byte, n)
	lsn := PackLSN(2, n)
	encodeRecord(buf, r, lsn)

	var got LogRecord
	decodeRecord(buf, 0, &got)
	require.Equal(t, RecordFlush, got.Type)
	require.Nil(t, got.CollectionID)
	require.Nil(t, got.PartitionTag)
	require.Nil(t, got.IDs)
	require.Nil(t, got.Data)
}

func TestPackUnpackLSN(t *testing.T) {
	lsn := PackLSN(7, 12345)
	fileNo, offset := UnpackLSN(lsn)
	require.Equal(t, uint32(7), fileNo)
	require.Equal(t, uint32(12345), offset)
	require.Equal(t, uint32(7), lsn.FileNo())
	require.Equal(t, uint32(12345), lsn.Offset())
}
