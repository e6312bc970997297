package storage

import (
	"bytes"
	"compress/zlib"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/raphi011/hookrun/internal/model"
)

//go:embed migrations/*.sql
var fs embed.FS

// Storage persists the history of test runs in sqlite.
type Storage struct {
	db  *sqlx.DB
	log *slog.Logger
}

// New opens (and migrates) the database in dbFilename. An empty
// filename creates a private in-memory database.
func New(dbFilename string, log *slog.Logger) (*Storage, error) {
	db, err := sqlx.Connect("sqlite", connectionString(dbFilename))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	row := db.QueryRow("select sqlite_version()")

	var version string
	err = row.Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve sqlite version: %w", err)
	}

	log.Debug("Using sqlite version: " + version)

	s := &Storage{
		db:  db,
		log: log,
	}

	if err = s.migrateDB(db); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func connectionString(filename string) string {
	var cs string
	var options = []string{"_pragma=busy_timeout(5000)", "_pragma=journal_mode(WAL)", "_pragma=foreign_keys(1)", "_pragma=synchronous(normal)"}

	if filename != "" {
		cs = filename
	} else {
		cs = "file:" + randomAlphanumeric(16)
		options = append(options, "mode=memory", "cache=shared")
	}

	for i, o := range options {
		if i == 0 {
			cs += "?"
		} else {
			cs += "&"
		}
		cs += o
	}

	return cs
}

const alphaNumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphaNumericChars[rand.Intn(len(alphaNumericChars))]
	}
	return string(b)
}

func (s *Storage) migrateDB(db *sqlx.DB) error {
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return fmt.Errorf("load db migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("load migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate with instance: %w", err)
	}

	err = m.Up()

	if err == migrate.ErrNoChange {
		s.log.Debug("No migrations have been applied. The DB is at the latest state.")
	} else if err != nil {
		return fmt.Errorf("applying db migrations: %w", err)
	}

	return nil
}

type storageContextKey string

func (s *Storage) StartTransaction(ctx context.Context) (context.Context, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, err
	}

	return context.WithValue(ctx, storageContextKey("storage.transaction"), tx), nil
}

func (s *Storage) CommitTransaction(ctx context.Context) error {
	v := ctx.Value(storageContextKey("storage.transaction"))

	if v == nil {
		return errors.New("context does not contain a transaction")
	}

	return v.(*sqlx.Tx).Commit()
}

func (s *Storage) RollbackTransaction(ctx context.Context) {
	v := ctx.Value(storageContextKey("storage.transaction"))

	if v != nil {
		err := v.(*sqlx.Tx).Rollback()
		if err != nil && err != sql.ErrTxDone {
			s.log.Warn("could not rollback transaction", "error", err)
		}
	}
}

func (s *Storage) getDB(ctx context.Context) commonDB {
	v := ctx.Value(storageContextKey("storage.transaction"))

	if v == nil {
		return s.db
	}

	return v.(*sqlx.Tx)
}

// functions shared by `*sqlx.Tx` and `*sqlx.Db`
type commonDB interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

// SaveRun stores a finished run together with all of its test results.
func (s *Storage) SaveRun(ctx context.Context, run model.RunRecord) (err error) {
	ctx, err = s.StartTransaction(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer s.RollbackTransaction(ctx)

	db := s.getDB(ctx)

	_, err = db.NamedExecContext(ctx, `INSERT INTO TestRun
	(id, triggeredBy, successful, testsRun, startTime, endTime) VALUES
	(:id, :triggeredBy, :successful, :testsRun, :startTime, :endTime)`,
		map[string]any{
			"id":          run.ID,
			"triggeredBy": run.TriggeredBy,
			"successful":  run.Successful,
			"testsRun":    run.TestsRun,
			"startTime":   timeFormat(run.Start),
			"endTime":     timeFormat(run.End),
		})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.DuplicateError{}
		}
		return fmt.Errorf("inserting test run: %w", err)
	}

	for i, tr := range run.Tests {
		logs, err := compressedLogs(tr.Logs)
		if err != nil {
			return fmt.Errorf("unable to compress logs: %w", err)
		}

		_, err = db.NamedExecContext(ctx, `INSERT INTO TestResult
		(runId, position, testId, outcome, details, compressedLogs, startTime, durationInMs) VALUES
		(:runId, :position, :testId, :outcome, :details, :logs, :startTime, :durationInMs)`,
			map[string]any{
				"runId":        run.ID,
				"position":     i,
				"testId":       tr.TestID,
				"outcome":      tr.Outcome,
				"details":      tr.Details,
				"logs":         logs,
				"startTime":    timeFormat(tr.Start),
				"durationInMs": tr.DurationInMS,
			})
		if err != nil {
			return fmt.Errorf("inserting result of test %q: %w", tr.TestID, err)
		}
	}

	return s.CommitTransaction(ctx)
}

// LoadRun loads a run including its test results.
func (s *Storage) LoadRun(ctx context.Context, runID string) (model.RunRecord, error) {
	db := s.getDB(ctx)

	r, err := db.QueryxContext(ctx, `SELECT
	id, triggeredBy, successful, testsRun, startTime, endTime
	FROM TestRun WHERE id = ?`, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	defer r.Close()

	if !r.Next() {
		return model.RunRecord{}, model.NotFoundError{}
	}

	run, err := scanRun(r)
	if err != nil {
		return model.RunRecord{}, err
	}
	r.Close()

	run.Tests, err = s.loadTestRecords(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}

	return run, nil
}

// LoadRuns returns all runs without their test results, newest first.
func (s *Storage) LoadRuns(ctx context.Context) ([]model.RunRecord, error) {
	db := s.getDB(ctx)

	runs := []model.RunRecord{}
	r, err := db.QueryxContext(ctx, `SELECT
	id, triggeredBy, successful, testsRun, startTime, endTime
	FROM TestRun ORDER BY startTime DESC`)
	if err != nil {
		return runs, err
	}
	defer r.Close()

	for r.Next() {
		run, err := scanRun(r)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, nil
}

func (s *Storage) loadTestRecords(ctx context.Context, runID string) ([]model.TestRecord, error) {
	db := s.getDB(ctx)

	records := []model.TestRecord{}
	r, err := db.QueryxContext(ctx, `SELECT
	runId, testId, outcome, details, compressedLogs, startTime, durationInMs
	FROM TestResult WHERE runId = ? ORDER BY position`, runID)
	if err != nil {
		return records, err
	}
	defer r.Close()

	for r.Next() {
		tr, err := scanTestRecord(r)
		if err != nil {
			return nil, err
		}

		records = append(records, tr)
	}

	return records, nil
}

func timeFormat(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseDate(t string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, t)
}

func scanRun(r *sqlx.Rows) (model.RunRecord, error) {
	run := model.RunRecord{}

	var start, end string

	err := r.Scan(
		&run.ID,
		&run.TriggeredBy,
		&run.Successful,
		&run.TestsRun,
		&start,
		&end,
	)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("scanning test run: %w", err)
	}

	if run.Start, err = parseDate(start); err != nil {
		return model.RunRecord{}, fmt.Errorf("parsing start time: %w", err)
	}
	if run.End, err = parseDate(end); err != nil {
		return model.RunRecord{}, fmt.Errorf("parsing end time: %w", err)
	}

	run.DurationInMS = run.End.Sub(run.Start).Milliseconds()

	return run, nil
}

func scanTestRecord(r *sqlx.Rows) (model.TestRecord, error) {
	tr := model.TestRecord{}

	var start string

	var logs []byte

	err := r.Scan(
		&tr.RunID,
		&tr.TestID,
		&tr.Outcome,
		&tr.Details,
		&logs,
		&start,
		&tr.DurationInMS,
	)
	if err != nil {
		return model.TestRecord{}, fmt.Errorf("scanning test result: %w", err)
	}

	if tr.Start, err = parseDate(start); err != nil {
		return model.TestRecord{}, fmt.Errorf("parsing start time: %w", err)
	}

	tr.Logs, err = decompressLogs(logs)
	if err != nil {
		return model.TestRecord{}, err
	}

	return tr, nil
}

func compressedLogs(logs string) ([]byte, error) {
	var compressedLogs bytes.Buffer

	w := zlib.NewWriter(&compressedLogs)

	_, err := w.Write([]byte(logs))
	w.Close()

	return compressedLogs.Bytes(), err
}

func decompressLogs(l []byte) (string, error) {
	if len(l) == 0 {
		return "", nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(l))
	if err != nil {
		return "", fmt.Errorf("decompress logs: %w", err)
	}
	defer reader.Close()

	logs, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decompress logs: %w", err)
	}

	return string(logs), nil
}
