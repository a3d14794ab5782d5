package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ownedTables is every table the service migrates.
var ownedTables = []string{
	"tag_events",
	"webhooks",
	"webhook_mappings",
	"webhook_logs",
	"retry_queue",
	"settings",
}

// startPostgres starts a PostgreSQL container and returns its DSN.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("taglog"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		host, err := pgContainer.Host(ctx)
		if err != nil {
			return pgContainer, "", fmt.Errorf("failed to get PostgreSQL host: %w", err)
		}
		mappedPort, err := pgContainer.MappedPort(ctx, "5432")
		if err != nil {
			return pgContainer, "", fmt.Errorf("failed to get PostgreSQL port: %w", err)
		}
		dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/taglog?sslmode=disable", host, mappedPort.Port())
	}

	return pgContainer, dsn, nil
}

// truncatePostgresTables empties every owned table that exists. Tables appear
// once the first app in the suite has migrated.
func truncatePostgresTables(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer db.Close()

	ctxConnect, cancelConnect := context.WithTimeout(ctx, 5*time.Second)
	defer cancelConnect()
	if err := db.PingContext(ctxConnect); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	for _, tableName := range ownedTables {
		exists, err := tableExists(ctx, db, tableName)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", tableName, err)
		}
		if !exists {
			continue
		}
		ctxExec, cancelExec := context.WithTimeout(ctx, 5*time.Second)
		_, err = db.ExecContext(ctxExec, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", pq.QuoteIdentifier(tableName)))
		cancelExec()
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", tableName, err)
		}
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		tableName,
	).Scan(&exists)
	return exists, err
}
