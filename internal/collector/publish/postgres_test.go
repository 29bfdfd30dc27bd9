package publish

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
)

// Minimal fake SQL driver to exercise PostgresPublisher transaction and Exec paths.

type fakeDB struct {
	execs         []string
	failBegin     error
	failCommit    error
	failExecAt    map[int]error // 1-based index of exec call -> error
	commitCount   int
	rollbackCount int
}

type fakeDriver struct{}

type fakeConn struct{ db *fakeDB }

type fakeTx struct {
	db     *fakeDB
	closed bool
}

type fakeResult int

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{db: testFakeDB}, nil }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not supported")
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}
func (c *fakeConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.db.failBegin != nil {
		return nil, c.db.failBegin
	}
	return &fakeTx{db: c.db}, nil
}
func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	// Record queries
	c.db.execs = append(c.db.execs, query)
	idx := len(c.db.execs)
	if c.db.failExecAt != nil {
		if err, ok := c.db.failExecAt[idx]; ok {
			return nil, err
		}
	}
	return fakeResult(1), nil
}

func (t *fakeTx) Commit() error {
	if t.closed {
		return errors.New("already closed")
	}
	t.db.commitCount++
	t.closed = true
	if t.db.failCommit != nil {
		return t.db.failCommit
	}
	return nil
}
func (t *fakeTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.db.rollbackCount++
	t.closed = true
	return nil
}

var testFakeDB *fakeDB

func init() {
	sql.Register("fakesql", fakeDriver{})
}

func newSQLDBWithFake(db *fakeDB) *sql.DB {
	testFakeDB = db
	d, _ := sql.Open("fakesql", "")
	return d
}

func TestPostgresPublisher_Empty(t *testing.T) {
	db := newSQLDBWithFake(&fakeDB{})
	p := NewPostgresPublisher(db)
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestPostgresPublisher_NilDB(t *testing.T) {
	p := NewPostgresPublisher(nil)
	if err := p.PublishBatch(context.Background(), []BatchRecord{{Key: "a", DeliveryID: "d"}}); err == nil {
		t.Fatalf("expected error for nil database handle")
	}
}

func TestPostgresPublisher_MissingDeliveryID_RollsBack(t *testing.T) {
	f := &fakeDB{}
	db := newSQLDBWithFake(f)
	p := NewPostgresPublisher(db)
	err := p.PublishBatch(context.Background(), []BatchRecord{{Key: "a"}})
	if err == nil || err.Error() != "BatchRecord.DeliveryID must be set" {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.rollbackCount != 1 {
		t.Fatalf("expected rollback=1, got %d", f.rollbackCount)
	}
	if f.commitCount != 0 {
		t.Fatalf("expected commit=0")
	}
	if len(f.execs) != 0 {
		t.Fatalf("no execs expected, got %d", len(f.execs))
	}
}

func TestPostgresPublisher_InsertAndCommit(t *testing.T) {
	f := &fakeDB{}
	db := newSQLDBWithFake(f)
	p := NewPostgresPublisher(db)
	records := []BatchRecord{
		{Key: "k1", Seq: 0, DeliveryID: "d1"},
		{Key: "k1", Seq: 1, DeliveryID: "d2"},
	}
	if err := p.PublishBatch(context.Background(), records); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if f.commitCount != 1 || f.rollbackCount != 0 {
		t.Fatalf("commit/rollback mismatch: %d/%d", f.commitCount, f.rollbackCount)
	}
	if len(f.execs) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(f.execs))
	}
	for _, q := range f.execs {
		if !strings.Contains(q, "INSERT INTO key_batches") || !strings.Contains(q, "ON CONFLICT (delivery_id) DO NOTHING") {
			t.Fatalf("unexpected insert query: %q", q)
		}
	}
}

func TestPostgresPublisher_ExecError_Rollback(t *testing.T) {
	f := &fakeDB{failExecAt: map[int]error{1: errors.New("boom")}}
	db := newSQLDBWithFake(f)
	p := NewPostgresPublisher(db)
	err := p.PublishBatch(context.Background(), []BatchRecord{{Key: "k", DeliveryID: "d"}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.rollbackCount != 1 || f.commitCount != 0 {
		t.Fatalf("expected rollback only, got c=%d r=%d", f.commitCount, f.rollbackCount)
	}
}

func TestPostgresPublisher_CommitError(t *testing.T) {
	f := &fakeDB{failCommit: errors.New("commit-fail")}
	db := newSQLDBWithFake(f)
	p := NewPostgresPublisher(db)
	err := p.PublishBatch(context.Background(), []BatchRecord{{Key: "k", DeliveryID: "d"}})
	if err == nil || !strings.Contains(err.Error(), "commit-fail") {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.commitCount != 1 {
		t.Fatalf("expected one commit attempt")
	}
}
