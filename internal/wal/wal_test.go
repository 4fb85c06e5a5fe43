package wal

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/vwal-io/vwal/pkg/walbuf"
)

func TestWalIOAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	scope := tally.NoopScope

	w, err := NewWalIO(dir, "orders", 0, 0, NewDefaultConfig(), scope)
	require.NoError(t, err)
	defer w.Close()

	rec := &walbuf.LogRecord{
		Type:         walbuf.RecordInsertEntity,
		CollectionID: []byte("orders"),
		Data:         []byte("payload"),
	}
	lsn, err := w.Append(rec)
	require.NoError(t, err)
	require.Equal(t, lsn, w.GetWriteLsn())

	reader := w.NewReader(lsn)
	got, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got.Data)

	_, err = reader.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestWalIOActiveTailNoNewData(t *testing.T) {
	dir := t.TempDir()
	scope := tally.NoopScope

	w, err := NewWalIO(dir, "orders", 0, 0, NewDefaultConfig(), scope)
	require.NoError(t, err)
	defer w.Close()

	lsn, err := w.Append(&walbuf.LogRecord{Type: walbuf.RecordFlush})
	require.NoError(t, err)

	reader := w.NewReader(lsn, WithActiveTail(true))
	_, err = reader.Next()
	require.NoError(t, err)

	_, err = reader.Next()
	require.ErrorIs(t, err, ErrNoNewData)
}

func TestNewWalIORejectsSecondWriter(t *testing.T) {
	dir := t.TempDir()
	scope := tally.NoopScope

	w1, err := NewWalIO(dir, "orders", 0, 0, NewDefaultConfig(), scope)
	require.NoError(t, err)
	defer w1.Close()

	_, err = NewWalIO(dir, "orders", 0, 0, NewDefaultConfig(), scope)
	require.ErrorIs(t, err, ErrDirInUse)
}
