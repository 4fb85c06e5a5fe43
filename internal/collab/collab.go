// Package collab adapts the WAL to its two external collaborators: the
// upstream producer that hands it mutations to durably log, and the
// downstream applier that consumes replayed records to update in-memory
// indexes. Both boundaries are interfaces so the buffer core in pkg/walbuf
// never depends on message-bus or index-engine types.
package collab

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vwal-io/vwal/internal/wal"
	"github.com/vwal-io/vwal/pkg/walbuf"
)

// Mutation is one pending change destined for the log: an insert, a
// delete, or a flush marker, keyed to a collection/partition the same way
// an upstream producer groups messages by hashed channel key before
// handing them to storage.
type Mutation struct {
	Type         walbuf.RecordType
	CollectionID []byte
	PartitionTag []byte
	IDs          []uint64
	Data         []byte
}

// MutationSource is anything that can hand the Pump a stream of pending
// mutations. Producers implement this instead of the Pump reaching into
// message-bus internals directly.
type MutationSource interface {
	// Mutations returns the channel the Pump drains. It is closed by the
	// source when no more mutations will arrive.
	Mutations() <-chan Mutation
	// Err returns any error the source encountered while producing,
	// checked by the Pump after the channel closes.
	Err() error
}

// ChannelMutationSource is a MutationSource backed by a plain Go channel,
// the shape an upstream repacking stage (grouping raw producer messages by
// hashed key before they reach storage) would feed.
type ChannelMutationSource struct {
	ch  chan Mutation
	err error
}

// NewChannelMutationSource returns a source with the given channel
// capacity. Push publishes into it; Close signals completion.
func NewChannelMutationSource(capacity int) *ChannelMutationSource {
	return &ChannelMutationSource{ch: make(chan Mutation, capacity)}
}

func (s *ChannelMutationSource) Mutations() <-chan Mutation {
	return s.ch
}

func (s *ChannelMutationSource) Err() error {
	return s.err
}

// Push publishes m. It blocks if the channel is full.
func (s *ChannelMutationSource) Push(m Mutation) {
	s.ch <- m
}

// Fail records a terminal error and closes the channel; subsequent Push
// calls will panic, matching a single-producer-then-done lifecycle.
func (s *ChannelMutationSource) Fail(err error) {
	s.err = err
	close(s.ch)
}

// Close signals normal completion.
func (s *ChannelMutationSource) Close() {
	close(s.ch)
}

// IndexApplier applies one replayed record to whatever in-memory index the
// caller maintains, grouped by the record's collection/partition the way
// an insert node groups incoming rows by target segment before applying
// them.
type IndexApplier interface {
	Apply(ctx context.Context, record *walbuf.LogRecord) error
}

// ParamProvider resolves named configuration values from an external
// key/value source (an address, a threshold, a feature toggle), the same
// load-then-parse shape a parameter table uses to pull a single value out
// of a shared config store.
type ParamProvider interface {
	Load(key string) (string, error)
}

// Pump drives mutations from a MutationSource into the WAL, and replayed
// records from the WAL into an IndexApplier. It is the only component that
// touches both boundaries.
type Pump struct {
	wal     *wal.WalIO
	applier IndexApplier
}

// NewPump wires w and applier together.
func NewPump(w *wal.WalIO, applier IndexApplier) *Pump {
	return &Pump{wal: w, applier: applier}
}

// Drain appends every mutation source produces until its channel closes,
// returning the LSN of the last record appended (or the zero LSN if none
// were appended) and any source or append error encountered.
func (p *Pump) Drain(source MutationSource) (walbuf.LSN, error) {
	corrID := uuid.NewString()
	var last walbuf.LSN
	count := 0

	for m := range source.Mutations() {
		record := &walbuf.LogRecord{
			Type:         m.Type,
			CollectionID: m.CollectionID,
			PartitionTag: m.PartitionTag,
			IDs:          m.IDs,
			Data:         m.Data,
		}
		lsn, err := p.wal.Append(record)
		if err != nil {
			return last, errors.Wrapf(err, "collab[%s]: append mutation %d", corrID, count)
		}
		last = lsn
		count++
	}

	if err := source.Err(); err != nil {
		return last, errors.Wrapf(err, "collab[%s]: mutation source", corrID)
	}

	slog.Info("[collab.drain]", "correlation_id", corrID, "records", count, "last_lsn", last)
	return last, nil
}

// Replay reads records via reader and applies each to applier until the
// reader is exhausted (io.EOF/ErrNoNewData) or an error occurs.
func (p *Pump) Replay(ctx context.Context, reader *wal.Reader) error {
	corrID := uuid.NewString()
	applied := 0

	for {
		record, err := reader.Next()
		if err != nil {
			if isDrained(err) {
				break
			}
			return errors.Wrapf(err, "collab[%s]: read replay record %d", corrID, applied)
		}
		if err := p.applier.Apply(ctx, record); err != nil {
			return errors.Wrapf(err, "collab[%s]: apply record %d at lsn %v", corrID, applied, record.LSN)
		}
		applied++
	}

	slog.Info("[collab.replay]", "correlation_id", corrID, "records", applied)
	return nil
}

func isDrained(err error) bool {
	return errors.Is(err, wal.ErrNoNewData) || errors.Is(err, io.EOF)
}
