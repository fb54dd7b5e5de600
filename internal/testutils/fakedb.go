// Package testutils holds in-memory fakes shared by the service tests.
package testutils

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// The noop driver backs a *sql.DB whose transactions always succeed but
// whose statements always fail. Services under test run their store calls
// through fake stores that ignore the transaction handle, so all the
// database needs to provide is Begin/Commit/Rollback.
type noopDriver struct{}

func (noopDriver) Open(name string) (driver.Conn, error) { return &noopConn{}, nil }

type noopConn struct{}

func (*noopConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("noop driver does not support statements")
}
func (*noopConn) Close() error              { return nil }
func (*noopConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

var registerOnce sync.Once

// NewFakeDB returns a *sql.DB whose transactions commit and roll back
// without a real database behind them.
func NewFakeDB() *sql.DB {
	registerOnce.Do(func() {
		sql.Register("testutils-noop", noopDriver{})
	})
	db, err := sql.Open("testutils-noop", "")
	if err != nil {
		panic(err)
	}
	return db
}

// FakeClock is a manually advanced timer.Timer.
type FakeClock struct {
	mu  sync.Mutex
	now int64
}

// NewFakeClock creates a FakeClock starting at now (unix ms).
func NewFakeClock(now int64) *FakeClock {
	return &FakeClock{now: now}
}

// NowMillis returns the current fake time.
func (c *FakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by millis.
func (c *FakeClock) Advance(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += millis
}

// Set moves the clock to an absolute time.
func (c *FakeClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
