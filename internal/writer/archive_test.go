package writer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seedlabs/relay-listener/internal/model"
	"github.com/seedlabs/relay-listener/internal/router"
)

// fakeDB records batches and answers each queued insert with the next tag.
type fakeDB struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
	execs   []string
	seen    map[any]bool
	err     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{seen: make(map[any]bool)}
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.batches = append(db.batches, b.QueuedQueries)

	res := &fakeResults{err: db.err}
	for _, q := range b.QueuedQueries {
		id := q.Arguments[0]
		if db.seen[id] {
			res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		db.seen[id] = true
		res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return res
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execs = append(db.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), db.err
}

func (db *fakeDB) batchCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.batches)
}

func (db *fakeDB) rowCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.batches {
		n += len(b)
	}
	return n
}

type fakeResults struct {
	tags []pgconn.CommandTag
	err  error
	i    int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.i >= len(r.tags) {
		return pgconn.CommandTag{}, errors.New("no more results")
	}
	tag := r.tags[r.i]
	r.i++
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func relayMessage(text string, date int) model.RelayMessage {
	rm := model.NewRelayMessage("gem_tools_calls", text, json.RawMessage(strconv.Itoa(date)), model.SourceLive)
	rm.HandleID = "h1"
	rm.ReceivedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return rm
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestArchiveWriter_Transform(t *testing.T) {
	w := NewArchiveWriter(DefaultWriterConfig(), router.NewGrowableBuffer[model.RelayMessage](10, 0), nil, nil, nil)

	rm := relayMessage("hi", 1714557600)
	rm.From = json.RawMessage(`{"id":7}`)

	row := w.transform(rm)

	if row.MessageID != rm.ID {
		t.Errorf("MessageID = %x, want %x", row.MessageID, rm.ID)
	}
	if row.Channel != "gem_tools_calls" || row.Text != "hi" || row.Date != "1714557600" {
		t.Errorf("row = %+v", row)
	}
	if row.Sender != `{"id":7}` {
		t.Errorf("Sender = %v", row.Sender)
	}
	if row.Source != "live" || row.HandleID != "h1" {
		t.Errorf("Source/HandleID = %q/%q", row.Source, row.HandleID)
	}

	row = w.transform(relayMessage("no sender", 1))
	if row.Sender != nil {
		t.Errorf("Sender = %v, want nil", row.Sender)
	}
}

func TestArchiveWriter_FlushOnBatchSize(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.RelayMessage](10, 0)
	cfg := WriterConfig{BatchSize: 3, FlushInterval: time.Hour, FlushTimeout: time.Second}
	w := NewArchiveWriter(cfg, input, db, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 6; i++ {
		input.Send(relayMessage("m", i+1))
	}

	waitFor(t, func() bool { return db.rowCount() == 6 })

	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	db.mu.Lock()
	for i, b := range db.batches {
		if len(b) != 3 {
			t.Errorf("batch %d has %d rows, want 3", i, len(b))
		}
		if !strings.Contains(b[0].SQL, "ON CONFLICT (message_id) DO NOTHING") {
			t.Errorf("insert is not idempotent: %s", b[0].SQL)
		}
	}
	db.mu.Unlock()

	stats := w.Stats()
	if stats.Inserts != 6 || stats.Flushes != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestArchiveWriter_FlushOnInterval(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.RelayMessage](10, 0)
	cfg := WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond, FlushTimeout: time.Second}
	w := NewArchiveWriter(cfg, input, db, nil, nil)

	w.Start(context.Background())
	defer w.Stop(context.Background())

	input.Send(relayMessage("lonely", 1))

	waitFor(t, func() bool { return db.rowCount() == 1 })
}

func TestArchiveWriter_ConflictsCounted(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.RelayMessage](10, 0)
	cfg := WriterConfig{BatchSize: 2, FlushInterval: time.Hour, FlushTimeout: time.Second}
	w := NewArchiveWriter(cfg, input, db, nil, nil)

	w.Start(context.Background())

	// The same history item replayed after a reconnect.
	input.Send(relayMessage("dup", 1))
	input.Send(relayMessage("dup", 1))

	waitFor(t, func() bool { return w.Stats().Flushes == 1 })
	w.Stop(context.Background())

	stats := w.Stats()
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("stats = %+v, want 1 insert and 1 conflict", stats)
	}
}

func TestArchiveWriter_StopFlushesRemainder(t *testing.T) {
	db := newFakeDB()
	input := router.NewGrowableBuffer[model.RelayMessage](10, 0)
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour, FlushTimeout: time.Second}
	w := NewArchiveWriter(cfg, input, db, nil, nil)

	w.Start(context.Background())
	input.Send(relayMessage("a", 1))
	input.Send(relayMessage("b", 2))

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := db.rowCount(); got != 2 {
		t.Errorf("rows written = %d, want 2", got)
	}
}

func TestArchiveWriter_BatchError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection reset")
	input := router.NewGrowableBuffer[model.RelayMessage](10, 0)
	cfg := WriterConfig{BatchSize: 1, FlushInterval: time.Hour, FlushTimeout: time.Second}
	w := NewArchiveWriter(cfg, input, db, nil, nil)

	w.Start(context.Background())
	input.Send(relayMessage("x", 1))

	waitFor(t, func() bool { return w.Stats().Errors == 1 })
	w.Stop(context.Background())

	if w.Stats().Inserts != 0 {
		t.Errorf("Inserts = %d, want 0", w.Stats().Inserts)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := newFakeDB()
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if len(db.execs) != 2 {
		t.Fatalf("execs = %d, want 2", len(db.execs))
	}
	if !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS relay_messages") {
		t.Errorf("first statement = %s", db.execs[0])
	}

	db.err = errors.New("permission denied")
	if err := EnsureSchema(context.Background(), db); err == nil {
		t.Error("expected error")
	}
}
