package walctl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vwal-io/vwal/pkg/walbuf"
)

func TestListAndInspectSegments(t *testing.T) {
	dir := t.TempDir()
	buf := walbuf.NewBuffer(dir, 64*1024)
	require.NoError(t, buf.Init(0, 0))

	_, err := buf.Append(&walbuf.LogRecord{Type: walbuf.RecordInsertEntity, CollectionID: []byte("orders"), Data: []byte("hello")})
	require.NoError(t, err)
	_, err = buf.Append(&walbuf.LogRecord{Type: walbuf.RecordDeleteEntity, IDs: []uint64{1, 2}})
	require.NoError(t, err)

	segments, err := ListSegments(dir)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Equal(t, uint32(0), segments[0].FileNo)

	stats, err := GetBufferStats(dir, buf)
	require.NoError(t, err)
	require.Equal(t, 1, stats.SegmentCount)
	require.Equal(t, buf.GetWriteLsn().Offset(), stats.WriteOffset)

	records, err := InspectSegment(dir, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "InsertEntity", records[0].Type)
	require.Equal(t, "orders", records[0].CollectionID)
	require.Equal(t, "DeleteEntity", records[1].Type)
	require.Equal(t, 2, records[1].NumIDs)
}

func TestFormattersProduceOutput(t *testing.T) {
	var buf bytes.Buffer
	table := NewFormatter(FormatTable)
	require.NoError(t, table.WriteSegmentList(&buf, []SegmentInfo{{FileNo: 0, Name: "0.wal", SizeHuman: "1.0 kB"}}))
	require.Contains(t, buf.String(), "0.wal")

	buf.Reset()
	jsonFmt := NewFormatter(FormatJSON)
	require.NoError(t, jsonFmt.WriteRecords(&buf, []RecordInfo{{LSN: 100, Type: "InsertEntity"}}))
	require.Contains(t, buf.String(), "\"lsn\": 100")
}
