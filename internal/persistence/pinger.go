package persistence

import "context"

// Pinger is satisfied by every backing store handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Pinger = (*Postgres)(nil)
	_ Pinger = (*SQLite)(nil)
	_ Pinger = (*Redis)(nil)
)
