package journal

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTestBolt(t *testing.T) *BoltJournal {
	t.Helper()
	j, err := OpenBolt(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestBoltJournalReplayAfter(t *testing.T) {
	j := openTestBolt(t)
	ctx := context.Background()
	for rev := uint64(1); rev <= 5; rev++ {
		if err := j.Append(ctx, rev, txPayload(rev)); err != nil {
			t.Fatalf("Append(%d) failed: %v", rev, err)
		}
	}

	want := []replayed{
		{Revision: 3, Payload: "tx-3"},
		{Revision: 4, Payload: "tx-4"},
		{Revision: 5, Payload: "tx-5"},
	}
	if diff := cmp.Diff(want, collectReplay(t, j, 2)); diff != "" {
		t.Errorf("replay after 2 mismatch (-want +got):\n%s", diff)
	}

	if got := collectReplay(t, j, 5); len(got) != 0 {
		t.Errorf("replay after last revision returned %d entries, want none", len(got))
	}
	if got := collectReplay(t, j, math.MaxUint64); len(got) != 0 {
		t.Errorf("replay after MaxUint64 returned %d entries, want none", len(got))
	}
}

func TestBoltJournalPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	for rev := uint64(1); rev <= 3; rev++ {
		if err := j.Append(ctx, rev, txPayload(rev)); err != nil {
			t.Fatalf("Append(%d) failed: %v", rev, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	want := []replayed{
		{Revision: 1, Payload: "tx-1"},
		{Revision: 2, Payload: "tx-2"},
		{Revision: 3, Payload: "tx-3"},
	}
	if diff := cmp.Diff(want, collectReplay(t, reopened, 0)); diff != "" {
		t.Errorf("replay after reopen mismatch (-want +got):\n%s", diff)
	}
}

func TestBoltJournalReplayStopsOnError(t *testing.T) {
	j := openTestBolt(t)
	ctx := context.Background()
	for rev := uint64(1); rev <= 3; rev++ {
		if err := j.Append(ctx, rev, txPayload(rev)); err != nil {
			t.Fatalf("Append(%d) failed: %v", rev, err)
		}
	}

	errStop := errors.New("stop")
	calls := 0
	err := j.Replay(ctx, 0, func(revision uint64, payload []byte) error {
		calls++
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Errorf("Replay returned %v, want %v", err, errStop)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times after returning an error, want 1", calls)
	}
}

func TestBoltJournalReplayCopiesPayload(t *testing.T) {
	j := openTestBolt(t)
	ctx := context.Background()
	if err := j.Append(ctx, 1, txPayload(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	var captured []byte
	err := j.Replay(ctx, 0, func(revision uint64, payload []byte) error {
		captured = payload
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	for i := range captured {
		captured[i] = 0
	}

	want := []replayed{{Revision: 1, Payload: "tx-1"}}
	if diff := cmp.Diff(want, collectReplay(t, j, 0)); diff != "" {
		t.Errorf("stored payload changed after mutating a replayed copy (-want +got):\n%s", diff)
	}
}

func TestBoltJournalReplayHonorsContext(t *testing.T) {
	j := openTestBolt(t)
	if err := j.Append(context.Background(), 1, txPayload(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := j.Replay(ctx, 0, func(revision uint64, payload []byte) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Replay returned %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("callback ran %d times with a canceled context, want 0", calls)
	}
}
