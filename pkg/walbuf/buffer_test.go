package walbuf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func insertRecord(dataSize int) *LogRecord {
	return &LogRecord{
		Type: RecordInsertEntity,
		Data: make([]byte, dataSize),
	}
}

// TestFreshStartSingleFile covers scenario S1: three appends into an empty
// directory, exact LSNs, exact file size, bytewise replay, and an
// end-of-stream Next.
func TestFreshStartSingleFile(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 64*1024)
	require.NoError(t, b.Init(0, 0))

	r1 := insertRecord(79)  // header(21) + 79 == 100
	r2 := insertRecord(179) // 21 + 179 == 200
	r3 := insertRecord(129) // 21 + 129 == 150

	for i := range r1.Data {
		r1.Data[i] = 0xA1
	}
	for i := range r2.Data {
		r2.Data[i] = 0xB2
	}
	for i := range r3.Data {
		r3.Data[i] = 0xC3
	}

	lsn1, err := b.Append(r1)
	require.NoError(t, err)
	lsn2, err := b.Append(r2)
	require.NoError(t, err)
	lsn3, err := b.Append(r3)
	require.NoError(t, err)

	require.Equal(t, LSN(0x0000000000000064), lsn1)
	require.Equal(t, LSN(0x000000000000012C), lsn2)
	require.Equal(t, LSN(0x00000000000001C2), lsn3)

	info, err := os.Stat(filepath.Join(dir, "0.wal"))
	require.NoError(t, err)
	require.EqualValues(t, 450, info.Size())

	var got LogRecord
	require.NoError(t, b.Next(lsn3, &got))
	require.Equal(t, RecordInsertEntity, got.Type)
	require.Equal(t, r1.Data, got.Data)

	require.NoError(t, b.Next(lsn3, &got))
	require.Equal(t, r2.Data, got.Data)

	require.NoError(t, b.Next(lsn3, &got))
	require.Equal(t, r3.Data, got.Data)

	require.NoError(t, b.Next(lsn3, &got))
	require.Equal(t, RecordNone, got.Type)
}

// TestRolloverAndRecovery covers scenarios S2 and S3: a writer-forced
// rollover mid-stream, and reconstructing a fresh Buffer from the two
// segment files it left behind.
func TestRolloverAndRecovery(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 1024)
	// NewBuffer clamps 1024 up to WALBufferMinSize; shrink the slabs back
	// so two 600-byte records cannot share one and the second forces a
	// rollover.
	b.bufferSize = 1024
	require.NoError(t, b.Init(0, 0))

	r1 := insertRecord(579) // 21 + 579 == 600
	r2 := insertRecord(579)
	for i := range r1.Data {
		r1.Data[i] = 1
	}
	for i := range r2.Data {
		r2.Data[i] = 2
	}

	lsn1, err := b.Append(r1)
	require.NoError(t, err)
	lsn2, err := b.Append(r2)
	require.NoError(t, err)

	require.EqualValues(t, 600, lsn1)
	require.Equal(t, uint32(1), lsn2.FileNo())
	require.Equal(t, uint32(600), lsn2.Offset())

	info0, err := os.Stat(filepath.Join(dir, "0.wal"))
	require.NoError(t, err)
	require.EqualValues(t, 600, info0.Size())

	info1, err := os.Stat(filepath.Join(dir, "1.wal"))
	require.NoError(t, err)
	require.EqualValues(t, 600, info1.Size())

	var got LogRecord
	require.NoError(t, b.Next(lsn2, &got))
	require.Equal(t, r1.Data, got.Data)
	require.NoError(t, b.Next(lsn2, &got))
	require.Equal(t, r2.Data, got.Data)

	require.NoError(t, b.Close())

	// S3: reconstruct from disk with an unapplied tail.
	b2 := NewBuffer(dir, 1024)
	require.NoError(t, b2.Init(0, lsn2))
	require.GreaterOrEqual(t, b2.BufferSize(), uint32(600))

	var replay1, replay2 LogRecord
	require.NoError(t, b2.Next(lsn2, &replay1))
	require.Equal(t, r1.Data, replay1.Data)
	require.NoError(t, b2.Next(lsn2, &replay2))
	require.Equal(t, r2.Data, replay2.Data)
}

// TestReset covers scenario S4: Reset opens a fresh file and the writer
// cursor restarts at offset 0 in the next file number.
func TestReset(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 64*1024)
	require.NoError(t, b.Init(0, 0))

	r1 := insertRecord(79)
	lsn1, err := b.Append(r1)
	require.NoError(t, err)
	require.Equal(t, LSN(0x0000000000000064), lsn1)

	require.NoError(t, b.Reset(lsn1))
	require.Equal(t, LSN(0x0000000100000000), b.GetWriteLsn())
	require.Equal(t, b.GetWriteLsn(), b.GetReadLsn())

	_, err = os.Stat(filepath.Join(dir, "1.wal"))
	require.NoError(t, err)

	r2 := insertRecord(29) // 21 + 29 == 50
	lsn2, err := b.Append(r2)
	require.NoError(t, err)
	require.Equal(t, LSN(0x0000000100000032), lsn2)
}

// TestApplierBound covers scenario S5: Next never surfaces records past
// last_applied_lsn even though more remain buffered.
func TestApplierBound(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 64*1024)
	require.NoError(t, b.Init(0, 0))

	var lsns []LSN
	for i := 0; i < 10; i++ {
		lsn, err := b.Append(insertRecord(10))
		require.NoError(t, err)
		lsns = append(lsns, lsn)
	}

	bound := lsns[4]
	count := 0
	for i := 0; i < 5; i++ {
		var got LogRecord
		require.NoError(t, b.Next(bound, &got))
		require.NotEqual(t, RecordNone, got.Type)
		count++
	}
	require.Equal(t, 5, count)

	var got LogRecord
	require.NoError(t, b.Next(bound, &got))
	require.Equal(t, RecordNone, got.Type)
}

// TestSetWriteLsnAcrossFiles covers scenario S6: fast-forwarding the writer
// into a different, already-existing file preserves that file's prefix and
// resumes appends at the requested offset.
func TestSetWriteLsnAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer(dir, 64*1024)
	require.NoError(t, b.Init(0, 0))

	for i := 0; i < 3; i++ {
		_, err := b.Append(insertRecord(50))
		require.NoError(t, err)
	}
	require.NoError(t, b.rollover())
	require.NoError(t, b.rollover())
	require.Equal(t, uint32(2), b.GetWriteLsn().FileNo())

	target := filepath.Join(dir, "5.wal")
	require.NoError(t, os.WriteFile(target, make([]byte, 200), 0644))

	require.NoError(t, b.SetWriteLsn(PackLSN(5, 200)))
	require.Equal(t, uint32(5), b.GetWriteLsn().FileNo())
	require.Equal(t, uint32(200), b.GetWriteLsn().Offset())

	lsn, err := b.Append(insertRecord(29))
	require.NoError(t, err)
	require.Equal(t, uint32(5), lsn.FileNo())
	require.Equal(t, uint32(250), lsn.Offset())
}
