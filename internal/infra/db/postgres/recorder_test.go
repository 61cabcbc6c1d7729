package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
)

// recorder is a minimal database/sql driver that captures Exec calls.
type recorder struct {
	mu    sync.Mutex
	query string
	args  []driver.Value
	err   error
}

var (
	recordersMu sync.Mutex
	recorders   = map[string]*recorder{}
)

func init() { sql.Register("recorder-postgres", recDriver{}) }

func openRecorder(t *testing.T, execErr error) (*sql.DB, *recorder) {
	t.Helper()
	rec := &recorder{err: execErr}
	recordersMu.Lock()
	recorders[t.Name()] = rec
	recordersMu.Unlock()

	db, err := sql.Open("recorder-postgres", t.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db, rec
}

type recDriver struct{}

func (recDriver) Open(name string) (driver.Conn, error) {
	recordersMu.Lock()
	defer recordersMu.Unlock()
	rec, ok := recorders[name]
	if !ok {
		return nil, errors.New("unknown recorder " + name)
	}
	return &recConn{rec: rec}, nil
}

type recConn struct{ rec *recorder }

func (c *recConn) Prepare(q string) (driver.Stmt, error) { return &recStmt{rec: c.rec, query: q}, nil }
func (c *recConn) Close() error                          { return nil }
func (c *recConn) Begin() (driver.Tx, error)             { return nil, errors.New("transactions not supported") }

type recStmt struct {
	rec   *recorder
	query string
}

func (s *recStmt) Close() error  { return nil }
func (s *recStmt) NumInput() int { return -1 }

func (s *recStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.query = s.query
	s.rec.args = args
	if s.rec.err != nil {
		return nil, s.rec.err
	}
	return driver.RowsAffected(1), nil
}

func (s *recStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries not supported")
}
