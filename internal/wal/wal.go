package wal

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/vwal-io/vwal/pkg/walbuf"
)

var (
	metricAppendTotal      = "wal_append_total"
	metricAppendErrorTotal = "wal_append_errors_total"
	metricAppendDuration   = "wal_append_duration_seconds"
	metricAppendBytesTotal = "wal_append_bytes_total"
	metricNextTotal        = "wal_next_total"
	metricNextErrorTotal   = "wal_next_errors_total"
	metricNextDuration     = "wal_next_duration_seconds"
)

// ErrNoNewData is returned by a tailing Reader when the reader has caught
// up to its bound and more data may still arrive later.
var ErrNoNewData = errors.New("wal: no new data")

// ErrDirInUse is returned by NewWalIO when another process already holds
// the namespace's writer lock.
var ErrDirInUse = errors.New("wal: directory already locked by another writer")

// WalIO is the engine-facing façade over the buffer manager: it adds
// metrics, structured logging, and a single-writer file lock on top of
// pkg/walbuf.Buffer's pure algorithm.
type WalIO struct {
	buf       *walbuf.Buffer
	namespace string
	scope     tally.Scope
	fileLock  *flock.Flock
}

// NewWalIO opens the WAL directory dir for namespace, acquires the
// exclusive writer lock, and runs recovery bootstrap between startLsn and
// endLsn. dir must already exist; NewWalIO does not create it.
func NewWalIO(dir, namespace string, startLsn, endLsn walbuf.LSN, config *Config, scope tally.Scope) (*WalIO, error) {
	config.applyDefaults()

	fileLock := flock.New(filepath.Join(dir, pidLockName))
	if err := tryFileLock(fileLock); err != nil {
		return nil, err
	}

	buf := walbuf.NewBuffer(dir, config.BufferSize)
	if err := buf.Init(startLsn, endLsn); err != nil {
		_ = fileLock.Unlock()
		return nil, errors.Wrapf(err, "wal[%s]: init", namespace)
	}

	slog.Info("[wal.open]", "namespace", namespace, "dir", dir, "start_lsn", startLsn, "end_lsn", endLsn)

	return &WalIO{
		buf:       buf,
		namespace: namespace,
		scope:     scope.Tagged(map[string]string{"namespace": namespace}),
		fileLock:  fileLock,
	}, nil
}

func tryFileLock(fileLock *flock.Flock) error {
	locked, err := fileLock.TryLock()
	if err != nil {
		return errors.Wrap(err, "wal: acquire lock")
	}
	if !locked {
		return ErrDirInUse
	}
	return nil
}

// Append durably appends record and returns its assigned LSN.
func (w *WalIO) Append(record *walbuf.LogRecord) (walbuf.LSN, error) {
	w.scope.Counter(metricAppendTotal).Inc(1)
	start := time.Now()
	defer func() {
		w.scope.Histogram(metricAppendDuration, writeLatencyBuckets).RecordDuration(time.Since(start))
	}()

	lsn, err := w.buf.Append(record)
	if err != nil {
		w.scope.Counter(metricAppendErrorTotal).Inc(1)
		return 0, errors.Wrapf(err, "wal[%s]: append", w.namespace)
	}
	w.scope.Counter(metricAppendBytesTotal).Inc(int64(walbuf.RecordSize(record)))
	return lsn, nil
}

// Reset discards buffered content and reopens on the next file boundary
// after lsn.
func (w *WalIO) Reset(lsn walbuf.LSN) error {
	if err := w.buf.Reset(lsn); err != nil {
		return errors.Wrapf(err, "wal[%s]: reset", w.namespace)
	}
	slog.Info("[wal.reset]", "namespace", w.namespace, "lsn", lsn)
	return nil
}

// SetWriteLsn fast-forwards or rewinds the writer cursor.
func (w *WalIO) SetWriteLsn(lsn walbuf.LSN) error {
	if err := w.buf.SetWriteLsn(lsn); err != nil {
		return errors.Wrapf(err, "wal[%s]: set write lsn", w.namespace)
	}
	return nil
}

// GetReadLsn returns the current reader cursor, lock-free.
func (w *WalIO) GetReadLsn() walbuf.LSN {
	return w.buf.GetReadLsn()
}

// GetWriteLsn returns the current writer cursor, lock-free.
func (w *WalIO) GetWriteLsn() walbuf.LSN {
	return w.buf.GetWriteLsn()
}

// Close releases the buffer's file handle and the writer lock.
func (w *WalIO) Close() error {
	err := w.buf.Close()
	if unlockErr := w.fileLock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	slog.Info("[wal.close]", "namespace", w.namespace)
	return err
}

// ReaderOption configures a Reader returned by WalIO.NewReader.
type ReaderOption func(*Reader)

// WithActiveTail makes Next return ErrNoNewData instead of io.EOF once the
// reader catches up to its bound, so a caller can poll for more data
// appended after the reader was constructed.
func WithActiveTail(enabled bool) ReaderOption {
	return func(r *Reader) {
		r.withActiveTail = enabled
	}
}

// Reader replays records up to a caller-supplied applier bound.
type Reader struct {
	wal            *WalIO
	lastAppliedLsn walbuf.LSN
	withActiveTail bool
	closed         atomic.Bool
}

// NewReader returns a Reader bounded by lastAppliedLsn: Next stops once the
// reader's position has reached that bound. Only the position before a
// record is compared, so a record that starts below the bound is returned
// even if its LSN lies past it.
func (w *WalIO) NewReader(lastAppliedLsn walbuf.LSN, options ...ReaderOption) *Reader {
	r := &Reader{
		wal:            w,
		lastAppliedLsn: lastAppliedLsn,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// SetBound raises or lowers the applier bound Next will replay up to,
// letting a long-lived tailing Reader advance without being reconstructed.
func (r *Reader) SetBound(lastAppliedLsn walbuf.LSN) {
	r.lastAppliedLsn = lastAppliedLsn
}

// Next returns the next record, io.EOF (or ErrNoNewData in active-tail
// mode) once the reader is caught up to its bound, or a decode/IO error.
func (r *Reader) Next() (*walbuf.LogRecord, error) {
	if r.closed.Load() {
		return nil, io.EOF
	}

	r.wal.scope.Counter(metricNextTotal).Inc(1)
	start := time.Now()
	defer func() {
		r.wal.scope.Histogram(metricNextDuration, readLatencyBuckets).RecordDuration(time.Since(start))
	}()

	var record walbuf.LogRecord
	if err := r.wal.buf.Next(r.lastAppliedLsn, &record); err != nil {
		r.wal.scope.Counter(metricNextErrorTotal).Inc(1)
		return nil, errors.Wrapf(err, "wal[%s]: next", r.wal.namespace)
	}

	if record.Type == walbuf.RecordNone {
		if r.withActiveTail {
			return nil, ErrNoNewData
		}
		r.Close()
		return nil, io.EOF
	}

	return &record, nil
}

// Close marks the reader as exhausted. Subsequent Next calls return io.EOF.
func (r *Reader) Close() {
	r.closed.Store(true)
}
