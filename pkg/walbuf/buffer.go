package walbuf

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// WALBufferMinSize is the smallest buffer_size Buffer will honor.
	WALBufferMinSize uint32 = 64 * 1024
	// WALBufferMaxSize is the largest buffer_size Buffer will honor.
	WALBufferMaxSize uint32 = 2 * 1024 * 1024 * 1024
)

// cursor tracks a reader or writer position. fileNo/bufOffset/maxOffset
// are atomic so GetReadLsn/GetWriteLsn can be lock-free per spec. Buffer.mu
// is held around the decisions that compare or switch file numbers and
// slabs (rollover, Next's segment advance, SetWriteLsn's file change);
// Init and Reset set the fields without it.
type cursor struct {
	fileNo    atomic.Uint32
	bufIdx    atomic.Int32
	bufOffset atomic.Uint32
	maxOffset atomic.Uint32
}

func (c *cursor) lsn() LSN {
	return PackLSN(c.fileNo.Load(), c.bufOffset.Load())
}

// Buffer is the Buffer Manager: two fixed-size in-memory slabs, a reader
// and writer cursor, rollover on writer overflow, and demand-loading of
// historical segments for a lagging reader. See spec.md §4.3.
type Buffer struct {
	dir        string
	bufferSize uint32

	mu     sync.Mutex
	slabs  [2][]byte
	writer cursor
	reader cursor
	fh     *FileHandler

	initialized bool
}

// NewBuffer returns a Buffer rooted at dir with the given initial
// buffer_size, clamped into [WALBufferMinSize, WALBufferMaxSize]. Init
// must be called exactly once before Append/Next/Reset/SetWriteLsn.
func NewBuffer(dir string, bufferSize uint32) *Buffer {
	if bufferSize < WALBufferMinSize {
		bufferSize = WALBufferMinSize
	} else if bufferSize > WALBufferMaxSize {
		bufferSize = WALBufferMaxSize
	}
	return &Buffer{
		dir:        dir,
		bufferSize: bufferSize,
		fh:         NewFileHandler(dir),
	}
}

// BufferSize returns the buffer's current slab capacity in bytes. It may
// have grown past the constructor's value during Init.
func (b *Buffer) BufferSize() uint32 {
	return b.bufferSize
}

// Init rebuilds buffer and cursor state from on-disk files given
// start_lsn (applied-through) and end_lsn (durably-appended). See
// spec.md §4.4.
func (b *Buffer) Init(startLsn, endLsn LSN) error {
	readerFileNo, readerOffset := UnpackLSN(startLsn)
	writerFileNo, writerOffset := UnpackLSN(endLsn)

	if startLsn == endLsn {
		if writerOffset != 0 {
			writerFileNo++
			writerOffset = 0
			readerFileNo++
			readerOffset = 0
		}
	} else {
		needed, err := b.scanMaxSegmentSize(readerFileNo, writerFileNo)
		if err != nil {
			return err
		}
		if writerOffset > needed {
			needed = writerOffset
		}
		if needed > b.bufferSize {
			b.bufferSize = needed
		}
	}

	b.slabs[0] = make([]byte, b.bufferSize)
	b.slabs[1] = make([]byte, b.bufferSize)

	b.reader.fileNo.Store(readerFileNo)
	b.reader.bufOffset.Store(readerOffset)
	b.writer.fileNo.Store(writerFileNo)
	b.writer.bufOffset.Store(writerOffset)

	if readerFileNo == writerFileNo {
		b.reader.bufIdx.Store(0)
		b.writer.bufIdx.Store(0)

		b.fh.SetFileName(FileNameFor(writerFileNo))
		if writerOffset == 0 {
			b.fh.SetFileOpenMode(ModeWrite)
			if err := b.fh.OpenFile(); err != nil {
				return err
			}
		} else {
			b.fh.SetFileOpenMode(ModeAppend)
			if !b.fh.FileExists() {
				return errors.Wrapf(ErrRecoveryCorrupt, "wal file %s not found", b.fh.Path())
			}
			if err := b.fh.OpenFile(); err != nil {
				return err
			}
			if err := b.fh.Load(b.slabs[0], readerOffset, writerOffset-readerOffset); err != nil {
				return err
			}
			if err := b.fh.SeekWrite(writerOffset); err != nil {
				return err
			}
		}
	} else {
		b.reader.bufIdx.Store(0)

		readerFH := NewFileHandler(b.dir)
		readerFH.SetFileName(FileNameFor(readerFileNo))
		readerFH.SetFileOpenMode(ModeRead)
		if !readerFH.FileExists() {
			return errors.Wrapf(ErrRecoveryCorrupt, "wal file %s not found", readerFH.Path())
		}
		size, err := readerFH.GetFileSize()
		if err != nil {
			return err
		}
		b.reader.maxOffset.Store(uint32(size))
		if err := readerFH.Load(b.slabs[0], readerOffset, uint32(size)-readerOffset); err != nil {
			return err
		}
		_ = readerFH.CloseFile()

		b.writer.bufIdx.Store(1)
		b.fh.SetFileName(FileNameFor(writerFileNo))
		b.fh.SetFileOpenMode(ModeAppend)
		if !b.fh.FileExists() {
			return errors.Wrapf(ErrRecoveryCorrupt, "wal file %s not found", b.fh.Path())
		}
		if err := b.fh.OpenFile(); err != nil {
			return err
		}
		if err := b.fh.Load(b.slabs[1], 0, writerOffset); err != nil {
			return err
		}
		if err := b.fh.SeekWrite(writerOffset); err != nil {
			return err
		}
	}

	b.initialized = true
	return nil
}

// scanMaxSegmentSize inspects every file from readerFileNo to
// writerFileNo-1 inclusive concurrently, failing if any is zero-size, and
// returns the largest size observed (0 if the range is empty).
func (b *Buffer) scanMaxSegmentSize(readerFileNo, writerFileNo uint32) (uint32, error) {
	if writerFileNo <= readerFileNo {
		return 0, nil
	}

	sizes := make([]int64, writerFileNo-readerFileNo)
	g, _ := errgroup.WithContext(context.Background())
	for i := readerFileNo; i < writerFileNo; i++ {
		idx := i - readerFileNo
		fileNo := i
		g.Go(func() error {
			fh := NewFileHandler(b.dir)
			fh.SetFileName(FileNameFor(fileNo))
			size, err := fh.GetFileSize()
			if err != nil {
				return errors.Wrapf(ErrRecoveryCorrupt, "bad wal file %d: %v", fileNo, err)
			}
			if size == 0 {
				return errors.Wrapf(ErrRecoveryCorrupt, "bad wal file %d: empty", fileNo)
			}
			sizes[idx] = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var max int64
	for _, s := range sizes {
		if s > max {
			max = s
		}
	}
	return uint32(max), nil
}

// Reset discards buffer contents and reopens on a clean file boundary
// after lsn. See spec.md §4.3.3.
func (b *Buffer) Reset(lsn LSN) error {
	b.slabs[0] = make([]byte, b.bufferSize)
	b.slabs[1] = make([]byte, b.bufferSize)

	fileNo, offset := UnpackLSN(lsn)
	if offset != 0 {
		fileNo++
		offset = 0
	}

	b.writer.fileNo.Store(fileNo)
	b.writer.bufOffset.Store(offset)
	b.writer.bufIdx.Store(0)

	b.reader.fileNo.Store(fileNo)
	b.reader.bufOffset.Store(offset)
	b.reader.bufIdx.Store(0)
	b.reader.maxOffset.Store(0)

	_ = b.fh.CloseFile()
	b.fh.SetFileName(FileNameFor(fileNo))
	b.fh.SetFileOpenMode(ModeWrite)
	b.initialized = true
	return b.fh.OpenFile()
}

// Append serializes record, assigns its LSN, appends it durably, and
// advances the writer cursor. See spec.md §4.3.1.
func (b *Buffer) Append(record *LogRecord) (LSN, error) {
	if !b.initialized {
		return 0, ErrNotInitialized
	}

	n := RecordSize(record)
	if n > b.bufferSize {
		return 0, ErrRecordTooLarge
	}

	if b.bufferSize-b.writer.bufOffset.Load() < n {
		if err := b.rollover(); err != nil {
			return 0, err
		}
	}

	bufIdx := b.writer.bufIdx.Load()
	writeOffset := b.writer.bufOffset.Load()
	slab := b.slabs[bufIdx]

	lsn := PackLSN(b.writer.fileNo.Load(), writeOffset+n)
	encodeRecord(slab[writeOffset:writeOffset+n], record, lsn)

	if err := b.fh.Write(slab[writeOffset : writeOffset+n]); err != nil {
		return 0, err
	}

	b.writer.bufOffset.Store(writeOffset + n)
	record.LSN = lsn
	return lsn, nil
}

// rollover seals the current writer segment (swapping slabs if the reader
// still shares one with the writer) and reborns the File Handler onto the
// next file. See spec.md §4.3.1 step 2.
func (b *Buffer) rollover() error {
	b.mu.Lock()
	if b.writer.bufIdx.Load() == b.reader.bufIdx.Load() {
		b.reader.maxOffset.Store(b.writer.bufOffset.Load())
		b.writer.bufIdx.Store(b.writer.bufIdx.Load() ^ 1)
	}
	newFileNo := b.writer.fileNo.Load() + 1
	b.writer.fileNo.Store(newFileNo)
	b.writer.bufOffset.Store(0)
	b.mu.Unlock()

	return b.fh.ReBorn(FileNameFor(newFileNo))
}

// Next advances the reader forward until it either produces a record or
// catches up with lastAppliedLsn. See spec.md §4.3.2.
func (b *Buffer) Next(lastAppliedLsn LSN, record *LogRecord) error {
	if !b.initialized {
		return ErrNotInitialized
	}

	record.Type = RecordNone

	if b.GetReadLsn() >= lastAppliedLsn {
		return nil
	}

	needLoadNew := false
	b.mu.Lock()
	if b.reader.fileNo.Load() != b.writer.fileNo.Load() {
		if b.reader.bufOffset.Load() == b.reader.maxOffset.Load() {
			nextFileNo := b.reader.fileNo.Load() + 1
			b.reader.fileNo.Store(nextFileNo)
			b.reader.bufOffset.Store(0)
			if nextFileNo == b.writer.fileNo.Load() {
				b.reader.bufIdx.Store(b.writer.bufIdx.Load())
			} else {
				needLoadNew = true
			}
		}
	}
	readerFileNo := b.reader.fileNo.Load()
	readerBufIdx := b.reader.bufIdx.Load()
	b.mu.Unlock()

	if needLoadNew {
		readerFH := NewFileHandler(b.dir)
		readerFH.SetFileName(FileNameFor(readerFileNo))
		readerFH.SetFileOpenMode(ModeRead)
		if err := readerFH.OpenFile(); err != nil {
			return err
		}
		size, err := readerFH.GetFileSize()
		if err != nil {
			_ = readerFH.CloseFile()
			return err
		}
		if err := readerFH.Load(b.slabs[readerBufIdx], 0, uint32(size)); err != nil {
			_ = readerFH.CloseFile()
			return err
		}
		_ = readerFH.CloseFile()
		b.reader.maxOffset.Store(uint32(size))
	}

	offset := b.reader.bufOffset.Load()
	decodeRecord(b.slabs[readerBufIdx], offset, record)
	b.reader.bufOffset.Store(record.LSN.Offset())
	return nil
}

// GetReadLsn packs the reader cursor into an LSN. Cheap and lock-free;
// stale reads are tolerable because the caller's last_applied_lsn bound
// prevents overrun.
func (b *Buffer) GetReadLsn() LSN {
	return b.reader.lsn()
}

// GetWriteLsn packs the writer cursor into an LSN.
func (b *Buffer) GetWriteLsn() LSN {
	return b.writer.lsn()
}

// SetWriteLsn overrides the writer cursor, used after truncation or
// fast-forward. See spec.md §4.3.4.
func (b *Buffer) SetWriteLsn(lsn LSN) error {
	if !b.initialized {
		return ErrNotInitialized
	}

	oldFileNo := b.writer.fileNo.Load()
	newFileNo, newOffset := UnpackLSN(lsn)

	if oldFileNo == newFileNo {
		b.writer.bufOffset.Store(newOffset)
		return b.fh.SeekWrite(newOffset)
	}

	b.mu.Lock()
	b.writer.fileNo.Store(newFileNo)
	b.writer.bufOffset.Store(newOffset)
	if newFileNo == b.reader.fileNo.Load() {
		b.writer.bufIdx.Store(b.reader.bufIdx.Load())
		b.mu.Unlock()
		return nil
	}
	bufIdx := b.writer.bufIdx.Load()
	b.mu.Unlock()

	// Unlike Append's rollover, the target file here may already hold the
	// prefix we need to load: ReBorn's "always truncate" semantics would
	// destroy it. Preserve existing content when the file is already
	// there, matching Init's ModeAppend reopen of a non-empty writer file.
	name := FileNameFor(newFileNo)
	if err := b.fh.CloseFile(); err != nil {
		return err
	}
	b.fh.SetFileName(name)
	if b.fh.FileExists() {
		b.fh.SetFileOpenMode(ModeAppend)
	} else {
		b.fh.SetFileOpenMode(ModeWrite)
	}
	if err := b.fh.OpenFile(); err != nil {
		return err
	}
	if err := b.fh.Load(b.slabs[bufIdx], 0, newOffset); err != nil {
		return err
	}
	return b.fh.SeekWrite(newOffset)
}

// Close releases the File Handler's file descriptor.
func (b *Buffer) Close() error {
	return b.fh.CloseFile()
}
