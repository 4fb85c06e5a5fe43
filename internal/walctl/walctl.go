package walctl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/vwal-io/vwal/pkg/walbuf"
)

var segmentNameRE = regexp.MustCompile(`^(\d+)\.wal$`)

// ListSegments returns metadata for every "<n>.wal" file under walDir,
// sorted by file number.
func ListSegments(walDir string) ([]SegmentInfo, error) {
	entries, err := os.ReadDir(walDir)
	if err != nil {
		return nil, fmt.Errorf("read wal dir %s: %w", walDir, err)
	}

	var segments []SegmentInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := segmentNameRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		fileNo, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		segments = append(segments, SegmentInfo{
			FileNo:       uint32(fileNo),
			Name:         e.Name(),
			Size:         info.Size(),
			SizeHuman:    humanize.Bytes(uint64(info.Size())),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].FileNo < segments[j].FileNo })
	return segments, nil
}

// GetBufferStats reports buf's current cursor and sizing state alongside
// the on-disk segment count for walDir.
func GetBufferStats(walDir string, buf *walbuf.Buffer) (*BufferStats, error) {
	segments, err := ListSegments(walDir)
	if err != nil {
		return nil, err
	}

	readLsn := buf.GetReadLsn()
	writeLsn := buf.GetWriteLsn()

	return &BufferStats{
		BufferSize:      buf.BufferSize(),
		BufferSizeHuman: humanize.Bytes(uint64(buf.BufferSize())),
		ReadLSN:         uint64(readLsn),
		ReadFileNo:      readLsn.FileNo(),
		ReadOffset:      readLsn.Offset(),
		WriteLSN:        uint64(writeLsn),
		WriteFileNo:     writeLsn.FileNo(),
		WriteOffset:     writeLsn.Offset(),
		SegmentCount:    len(segments),
	}, nil
}

// InspectSegment demand-loads segment fileNo from walDir and decodes every
// record it holds, up to limit records (0 means unlimited).
func InspectSegment(walDir string, fileNo uint32, limit int) ([]RecordInfo, error) {
	path := filepath.Join(walDir, walbuf.FileNameFor(fileNo))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment %s: %w", path, err)
	}

	var records []RecordInfo
	offset := uint32(0)
	for offset < uint32(len(data)) {
		if limit > 0 && len(records) >= limit {
			break
		}
		if _, ok := walbuf.PeekRecordSize(data, offset); !ok {
			break // truncated tail record from a crash mid-write
		}

		var rec walbuf.LogRecord
		walbuf.DecodeRecordAt(data, offset, &rec)

		records = append(records, RecordInfo{
			LSN:          uint64(rec.LSN),
			FileNo:       rec.LSN.FileNo(),
			Offset:       rec.LSN.Offset(),
			Type:         rec.Type.String(),
			CollectionID: string(rec.CollectionID),
			PartitionTag: string(rec.PartitionTag),
			NumIDs:       len(rec.IDs),
			DataSize:     len(rec.Data),
		})
		offset = rec.LSN.Offset()
	}

	return records, nil
}
