package walbuf

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// OpenMode selects how FileHandler.OpenFile treats the active file.
type OpenMode int

const (
	// ModeWrite creates or truncates the file for writing.
	ModeWrite OpenMode = iota
	// ModeAppend opens an existing file for read/write without truncating
	// it. The write position starts at offset 0, not at the end of the
	// file; SeekWrite moves it.
	ModeAppend
	// ModeRead opens an existing file read-only.
	ModeRead
)

// FileHandler is a thin durable-I/O façade over a single log segment
// file: it owns at most one open file descriptor at a time and exposes
// the load/append/reborn primitives the Buffer Manager needs. Every
// operation reports failure as a wrapped ErrFileError; nothing here
// panics on I/O failure.
type FileHandler struct {
	dir  string
	name string
	mode OpenMode
	fd   *os.File
}

// NewFileHandler returns a handler rooted at dir. SetFileName must be
// called before OpenFile.
func NewFileHandler(dir string) *FileHandler {
	return &FileHandler{dir: dir}
}

// SetFileName sets the active file name (e.g. "3.wal"). It does not open
// the file.
func (h *FileHandler) SetFileName(name string) {
	h.name = name
}

// SetFileOpenMode sets the mode used by the next OpenFile call.
func (h *FileHandler) SetFileOpenMode(mode OpenMode) {
	h.mode = mode
}

// Path returns the absolute path of the currently named file.
func (h *FileHandler) Path() string {
	return filepath.Join(h.dir, h.name)
}

// FileExists reports whether the currently named file exists on disk.
func (h *FileHandler) FileExists() bool {
	_, err := os.Stat(h.Path())
	return err == nil
}

// GetFileSize returns the size in bytes of the currently named file.
func (h *FileHandler) GetFileSize() (int64, error) {
	info, err := os.Stat(h.Path())
	if err != nil {
		return 0, errors.Wrapf(ErrFileError, "stat %s: %v", h.Path(), err)
	}
	return info.Size(), nil
}

// OpenFile opens the currently named file according to the current mode.
func (h *FileHandler) OpenFile() error {
	var flag int
	switch h.mode {
	case ModeWrite:
		flag = os.O_CREATE | os.O_RDWR | os.O_TRUNC
	case ModeAppend:
		flag = os.O_RDWR
	case ModeRead:
		flag = os.O_RDONLY
	default:
		flag = os.O_RDONLY
	}

	fd, err := os.OpenFile(h.Path(), flag, 0644)
	if err != nil {
		return errors.Wrapf(ErrFileError, "open %s: %v", h.Path(), err)
	}
	h.fd = fd
	return nil
}

// SeekWrite positions the file descriptor so the next Write lands at
// offset. The Buffer Manager calls this after (re)opening a file whose
// writer cursor is not at its current end, so subsequent sequential
// Writes track buf_offset exactly rather than the file's on-disk EOF.
func (h *FileHandler) SeekWrite(offset uint32) error {
	if h.fd == nil {
		if err := h.OpenFile(); err != nil {
			return err
		}
	}
	if _, err := h.fd.Seek(int64(offset), io.SeekStart); err != nil {
		return errors.Wrapf(ErrFileError, "seek %s to %d: %v", h.Path(), offset, err)
	}
	return nil
}

// CloseFile closes the current file descriptor, if any.
func (h *FileHandler) CloseFile() error {
	if h.fd == nil {
		return nil
	}
	err := h.fd.Close()
	h.fd = nil
	if err != nil {
		return errors.Wrapf(ErrFileError, "close %s: %v", h.Path(), err)
	}
	return nil
}

// Load reads nbytes starting at file offset dstOffset into
// dst[dstOffset:dstOffset+nbytes]. The source offset into the file equals
// the destination offset into dst by design, so in-memory slab offsets
// mirror on-disk byte offsets.
func (h *FileHandler) Load(dst []byte, dstOffset, nbytes uint32) error {
	if h.fd == nil {
		if err := h.OpenFile(); err != nil {
			return err
		}
	}
	if nbytes == 0 {
		return nil
	}
	n, err := h.fd.ReadAt(dst[dstOffset:dstOffset+nbytes], int64(dstOffset))
	if err != nil && err != io.EOF {
		return errors.Wrapf(ErrFileError, "read %s at %d: %v", h.Path(), dstOffset, err)
	}
	if uint32(n) != nbytes {
		return errors.Wrapf(ErrFileError, "short read %s at %d: got %d want %d", h.Path(), dstOffset, n, nbytes)
	}
	return nil
}

// Write appends nbytes from src to the current file and flushes to the
// operating system before returning: the WAL's durability contract is
// per-record.
func (h *FileHandler) Write(src []byte) error {
	if h.fd == nil {
		return errors.Wrap(ErrFileError, "write: file not open")
	}
	if _, err := h.fd.Write(src); err != nil {
		return errors.Wrapf(ErrFileError, "write %s: %v", h.Path(), err)
	}
	if err := h.fd.Sync(); err != nil {
		return errors.Wrapf(ErrFileError, "fsync %s: %v", h.Path(), err)
	}
	return nil
}

// ReBorn closes the current file, renames the active name to newName, and
// opens it fresh in ModeWrite.
func (h *FileHandler) ReBorn(newName string) error {
	if err := h.CloseFile(); err != nil {
		return err
	}
	h.SetFileName(newName)
	h.SetFileOpenMode(ModeWrite)
	return h.OpenFile()
}

// FileNameFor formats the on-disk segment name for a file number.
func FileNameFor(fileNo uint32) string {
	return strconv.FormatUint(uint64(fileNo), 10) + ".wal"
}
