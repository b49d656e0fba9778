package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/asfixia/pgsession/internal/config"
	"github.com/asfixia/pgsession/pkg/pglog"
)

// Pool seizes connections out of an underlying *pgxpool.Pool, one per
// Session, generalizing the teacher's per-testID *pgx.Conn dial
// (internal/proxy/connection_pool.go) into a real pooled client: the
// teacher never pooled connections at all (one raw conn per test run),
// so this is where pgxpool.Pool finally gets exercised.
type Pool struct {
	pgxpool *pgxpool.Pool
	cfg     config.PoolConfig

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// OpenPool parses cfg's DSN, builds a *pgxpool.Pool sized by cfg.Pool, and
// returns a ready Pool. appName is reported to the server the same way
// the teacher tags each test connection's application_name.
func OpenPool(ctx context.Context, cfg *config.Config, appName string) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN(appName))
	if err != nil {
		return nil, fmt.Errorf("pgsession: parse pool config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Pool.MaxSessions)
	poolCfg.ConnConfig.ConnectTimeout = cfg.Pool.ConnTimeout
	poolCfg.ConnConfig.OnNotice = onPostgresNotice

	pgxp, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgsession: open pool: %w", err)
	}

	if err := pgxp.Ping(ctx); err != nil {
		pgxp.Close()
		return nil, fmt.Errorf("pgsession: ping pool: %w", err)
	}

	return &Pool{
		pgxpool:  pgxp,
		cfg:      cfg.Pool,
		sessions: make(map[*Session]struct{}),
	}, nil
}

// Seize acquires one connection from the underlying pool and hands it
// to a freshly started Session, the Go shape of "PgThreadPooledClient
// assigns a PgSingleSession a connection and runs it on a dedicated
// thread" (original_source).
func (p *Pool) Seize(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pgsession: pool is closed")
	}
	p.mu.Unlock()

	pooled, err := p.pgxpool.Acquire(ctx)
	if err != nil {
		return nil, &PostgresUnavailableError{Cause: err}
	}

	conn := newPgxConn(pooled.Conn())

	var sess *Session
	sess = newSession(conn, p, func(connHandle) {
		pooled.Release()
		p.untrack(sess)
	})

	p.track(sess)
	return sess, nil
}

func (p *Pool) track(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s] = struct{}{}
}

func (p *Pool) untrack(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, s)
}

// Close stops accepting Seize calls, closes every outstanding session
// concurrently via an errgroup (the session loops drain their own
// queues and terminate on their own; Close just waits for all of them
// to report done), then closes the underlying pgxpool.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := make([]*Session, 0, len(p.sessions))
	for s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			s.Close()
			s.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		pglog.Default().Warn("error while closing sessions: %v", err)
	}

	p.pgxpool.Close()
	return nil
}

// CreateQuery implements queryFactory: it is currently the identity
// function, since this pool has no prepared-statement/parameter-count
// bookkeeping of its own (the original's Query abstraction combined SQL
// text with a bind-parameter count for JDBC's PreparedStatement API;
// pgx takes positional args directly on Query/Exec, so there is nothing
// left to track beyond the SQL text itself).
func (p *Pool) CreateQuery(sql string) string {
	return sql
}

// CombineQueries concatenates statements with a semicolon, adapted from
// the original's multi-statement Query.combine used by transaction
// batching helpers.
func (p *Pool) CombineQueries(sqls []string) string {
	trimmed := make([]string, 0, len(sqls))
	for _, s := range sqls {
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, ";")
		trimmed = append(trimmed, s)
	}
	return strings.Join(trimmed, ";\n")
}
