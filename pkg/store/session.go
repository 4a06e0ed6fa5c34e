package store

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// Session wraps a gocql session scoped to the chat keyspace.
type Session struct {
	*gocql.Session
}

// NewSession connects to the cluster with quorum consistency. The query
// timeout comes from configuration; the connect timeout and the retry
// backoff are derived from it so one knob tunes the whole session.
func NewSession(hosts []string, keyspace string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = timeout
	cluster.ConnectTimeout = timeout
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        timeout / 50,
		Max:        timeout / 5,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to %s keyspace: %w", keyspace, err)
	}
	return &Session{Session: session}, nil
}
