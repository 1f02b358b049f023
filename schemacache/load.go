package schemacache

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"

	"github.com/postgrestools/pgtools/config"
)

// ErrNoDatabase is returned by Refresh when the config carries no
// connection settings. Callers treat it as "analysis degrades", not as
// a failure.
var ErrNoDatabase = errors.New("no database connection configured")

// SocksEnvVar optionally routes catalog connections through a SOCKS5
// proxy, for setups where the database is only reachable via a jump host.
const SocksEnvVar = "PGTOOLS_SOCKS"

// Refresh loads a fresh snapshot from the configured database and
// publishes it. The connection honors the configured connTimeoutSecs.
func (c *Cache) Refresh(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasDB() {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout())
	defer cancel()

	conn, err := connect(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "connecting for schema refresh")
	}
	defer conn.Close(ctx)

	snap, err := load(ctx, conn)
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}
	c.Publish(snap)
	c.logger.WithFields(map[string]interface{}{
		"tables":  len(snap.Tables),
		"schemas": len(snap.Schemas),
	}).Debug("schema cache refreshed")
	return nil
}

func connect(ctx context.Context, cfg *config.Config) (*pgx.Conn, error) {
	return connectDSN(ctx, buildDSN(cfg))
}

// buildDSN renders keyword/value connection settings for pgx.
func buildDSN(cfg *config.Config) string {
	db := cfg.DB
	dsn := fmt.Sprintf("host=%s dbname=%s", db.Host, db.Database)
	if db.Port != 0 {
		dsn += fmt.Sprintf(" port=%d", db.Port)
	}
	if db.Username != "" {
		dsn += " user=" + db.Username
	}
	if db.Password != "" {
		dsn += " password=" + db.Password
	}
	dsn += fmt.Sprintf(" connect_timeout=%d", int(cfg.ConnTimeout()/time.Second))
	return dsn
}

func connectDSN(ctx context.Context, dsn string) (*pgx.Conn, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if socks := os.Getenv(SocksEnvVar); socks != "" {
		dialer, err := proxy.SOCKS5("tcp", socks, nil, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "could not set up SOCKS5 proxy at %s", socks)
		}
		ctxDialer := dialer.(proxy.ContextDialer)
		connCfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return ctxDialer.DialContext(ctx, network, addr)
		}
	}
	return pgx.ConnectConfig(ctx, connCfg)
}
