package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// BaseIntegrationSuite starts Postgres and NATS once per suite. The service
// itself runs in-process against them, see startTestApp.
type BaseIntegrationSuite struct {
	suite.Suite
	Postgres    testcontainers.Container
	PostgresDSN string
	NATS        testcontainers.Container
	NATSURL     string
	Ctx         context.Context
	cancel      context.CancelFunc
}

// SetupSuite runs once before the tests in the suite.
func (s *BaseIntegrationSuite) SetupSuite() {
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	log.Println("Setting up BaseIntegrationSuite...")
	logger.Log = zaptest.NewLogger(s.T()).Named("BaseIntegrationSuite")
	// Matches cmd/main: timestamps are stored and compared in UTC.
	time.Local = time.UTC

	startTime := time.Now()
	var err error

	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start postgres: %v", err)
	}
	log.Println("PostgreSQL container started.")

	s.NATS, s.NATSURL, err = startNATSContainer(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start NATS: %v", err)
	}
	log.Println("NATS container started.")

	log.Printf("BaseIntegrationSuite setup complete in %v", time.Since(startTime))
}

// TearDownSuite runs once after all tests in the suite have finished.
func (s *BaseIntegrationSuite) TearDownSuite() {
	log.Println("Tearing down BaseIntegrationSuite...")
	startTime := time.Now()
	logger.Log = zap.NewNop()

	if s.NATS != nil {
		if err := s.NATS.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating NATS container: %v", err)
		}
	}
	if s.Postgres != nil {
		if err := s.Postgres.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating PostgreSQL container: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	log.Printf("BaseIntegrationSuite teardown complete in %v", time.Since(startTime))
}

// SetupTest truncates every table so each test starts clean.
func (s *BaseIntegrationSuite) SetupTest() {
	err := truncatePostgresTables(s.Ctx, s.PostgresDSN)
	s.Require().NoError(err, "Failed to truncate PostgreSQL tables")
}

// StartApp wires the service against the suite's containers and stops it
// when the current test ends.
func (s *BaseIntegrationSuite) StartApp(opts appOptions) *testApp {
	if opts.NATSURL == "" {
		opts.NATSURL = s.NATSURL
	}
	app, err := startTestApp(s.PostgresDSN, opts)
	s.Require().NoError(err, "Failed to start the service")
	s.T().Cleanup(app.Close)
	return app
}

// --- Database helpers ---

func (s *BaseIntegrationSuite) connectDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", s.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connectDB: failed to open connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(s.Ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connectDB: failed to ping database: %w", err)
	}
	return db, nil
}

// VerifyPostgresData checks that a COUNT(*) query returns expected.
func (s *BaseIntegrationSuite) VerifyPostgresData(ctx context.Context, query string, expected int, args ...interface{}) (bool, error) {
	if !strings.Contains(strings.ToLower(query), "count(*)") {
		return false, fmt.Errorf("VerifyPostgresData: expected a COUNT(*) query, got %q", query)
	}
	var count int
	if err := s.QueryRowScan(ctx, query, []interface{}{&count}, args...); err != nil {
		return false, err
	}
	return count == expected, nil
}

// QueryRowScan executes a query expected to return one row and scans it.
func (s *BaseIntegrationSuite) QueryRowScan(ctx context.Context, query string, dest []interface{}, args ...interface{}) error {
	db, err := s.connectDB()
	if err != nil {
		return fmt.Errorf("QueryRowScan: %w", err)
	}
	defer db.Close()

	ctxQuery, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = db.QueryRowContext(ctxQuery, query, args...).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("QueryRowScan: no rows found. Query: %s, Args: %v: %w", query, args, err)
		}
		return fmt.Errorf("QueryRowScan: failed query/scan: %w. Query: %s, Args: %v", err, query, args)
	}
	return nil
}

// ExecuteNonQuery executes a statement that returns no rows.
func (s *BaseIntegrationSuite) ExecuteNonQuery(ctx context.Context, query string, args ...interface{}) error {
	db, err := s.connectDB()
	if err != nil {
		return fmt.Errorf("ExecuteNonQuery: %w", err)
	}
	defer db.Close()

	ctxExec, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctxExec, query, args...); err != nil {
		return fmt.Errorf("ExecuteNonQuery: failed query: %w. Query: %s, Args: %v", err, query, args)
	}
	return nil
}

// EventuallyCount waits until table holds expected rows matching where.
func (s *BaseIntegrationSuite) EventuallyCount(table, where string, expected int, args ...interface{}) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	s.Eventually(func() bool {
		ok, err := s.VerifyPostgresData(s.Ctx, query, expected, args...)
		if err != nil {
			s.T().Logf("count on %s failed: %v", table, err)
			return false
		}
		return ok
	}, 10*time.Second, 100*time.Millisecond, "expected %d rows in %s where %q", expected, table, where)
}
