package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/vwal-io/vwal/internal/wal"
	"github.com/vwal-io/vwal/pkg/walbuf"
)

type recordingApplier struct {
	applied []*walbuf.LogRecord
}

func (a *recordingApplier) Apply(_ context.Context, record *walbuf.LogRecord) error {
	cp := *record
	cp.Data = append([]byte(nil), record.Data...)
	a.applied = append(a.applied, &cp)
	return nil
}

func TestPumpDrainAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWalIO(dir, "orders", 0, 0, wal.NewDefaultConfig(), tally.NoopScope)
	require.NoError(t, err)
	defer w.Close()

	applier := &recordingApplier{}
	pump := NewPump(w, applier)

	source := NewChannelMutationSource(4)
	go func() {
		source.Push(Mutation{Type: walbuf.RecordInsertEntity, CollectionID: []byte("orders"), Data: []byte("row-1")})
		source.Push(Mutation{Type: walbuf.RecordInsertEntity, CollectionID: []byte("orders"), Data: []byte("row-2")})
		source.Close()
	}()

	lastLsn, err := pump.Drain(source)
	require.NoError(t, err)
	require.Equal(t, lastLsn, w.GetWriteLsn())

	reader := w.NewReader(lastLsn)
	require.NoError(t, pump.Replay(context.Background(), reader))
	require.Len(t, applier.applied, 2)
	require.Equal(t, []byte("row-1"), applier.applied[0].Data)
	require.Equal(t, []byte("row-2"), applier.applied[1].Data)
}
