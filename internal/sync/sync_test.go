package sync

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
}

func (d *mockDestination) Name() string { return "mock" }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, map[string]string{
		"collections/en/data/skills.json": `{"skills":["Go"]}`,
	})
	ms := memory.New()
	rec := &events.Recorder{}
	p, err := NewPipeline(ms, WithPublisher(rec), WithOwner("test"), WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}

	dest := &mockDestination{}
	sched := NewScheduler(p, root, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Wait for at least the initial sync + one tick.
	time.Sleep(150 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	lines := nonEmptyLines(string(data))
	// 1 header + 1 collection + 1 manifest = 3
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	if _, err := ms.GetCollection(context.Background(), "en", model.FolderData, "skills"); err != nil {
		t.Fatalf("scheduled pump did not load the source: %v", err)
	}
	var exported int
	for _, topic := range rec.Topics() {
		if topic == events.TopicSnapshotExported {
			exported++
		}
	}
	if exported < 2 {
		t.Fatalf("expected snapshot events, got topics %v", rec.Topics())
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	p, err := NewPipeline(memory.New(), WithOwner("test"))
	if err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(p, "", nil, time.Minute, testLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	p, err := NewPipeline(memory.New(), WithOwner("test"))
	if err != nil {
		t.Fatal(err)
	}
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}

	sched := NewScheduler(p, "", []Destination{dest1, dest2}, time.Second, testLogger())
	sched.Start()

	// Wait for the initial sync.
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() < 1 {
		t.Fatal("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Fatal("dest2 expected at least 1 write")
	}
}
