package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/eiga/internal/index"
	"github.com/hyperjump/eiga/internal/models"
)

// SQLiteStore implements ArtifactStore using SQLite. Each artifact is a header row
// plus one title row and one matrix row per movie position.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		built_at TEXT NOT NULL,
		movies INTEGER NOT NULL,
		vocabulary_size INTEGER NOT NULL,
		source TEXT,
		fingerprint TEXT,
		analysis TEXT
	);

	CREATE TABLE IF NOT EXISTS artifact_titles (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		movie_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		PRIMARY KEY (build_id, position)
	);

	CREATE TABLE IF NOT EXISTS artifact_rows (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (build_id, position)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return migrateSchema(db)
}

// migrateSchema adds columns introduced after the artifacts table was first created.
func migrateSchema(db *sql.DB) error {
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('artifacts') WHERE name = 'analysis'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.Exec(`ALTER TABLE artifacts ADD COLUMN analysis TEXT`)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Files returns the database file and its WAL companions, for disk usage reporting.
func (s *SQLiteStore) Files() []string {
	return []string{s.path, s.path + "-wal", s.path + "-shm"}
}

// SaveArtifact writes the index header, title projection and matrix rows in one transaction.
func (s *SQLiteStore) SaveArtifact(ctx context.Context, ix *index.Index) error {
	meta := ix.Meta()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts (build_id, built_at, movies, vocabulary_size, source, fingerprint, analysis)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.BuildID, meta.BuiltAt.UTC().Format(time.RFC3339Nano), ix.Len(), meta.VocabularySize,
		meta.Source, meta.Fingerprint, meta.Analysis,
	); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	titleStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifact_titles (build_id, position, movie_id, title) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer titleStmt.Close()
	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifact_rows (build_id, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()

	m := ix.Matrix()
	for pos, t := range ix.Titles() {
		if _, err := titleStmt.ExecContext(ctx, meta.BuildID, pos, t.ID, t.Title); err != nil {
			return fmt.Errorf("insert title %d: %w", pos, err)
		}
		if _, err := rowStmt.ExecContext(ctx, meta.BuildID, pos, encodeRow(m.Row(pos))); err != nil {
			return fmt.Errorf("insert row %d: %w", pos, err)
		}
	}
	return tx.Commit()
}

// LoadLatest restores the most recently saved artifact.
func (s *SQLiteStore) LoadLatest(ctx context.Context) (*index.Index, error) {
	var buildID string
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id FROM artifacts ORDER BY seq DESC LIMIT 1`).Scan(&buildID)
	if err == sql.ErrNoRows {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, buildID)
}

// Load restores the artifact with the given build ID.
func (s *SQLiteStore) Load(ctx context.Context, buildID string) (*index.Index, error) {
	info, err := s.artifactInfo(ctx, buildID)
	if err != nil {
		return nil, err
	}
	titles, err := s.loadTitles(ctx, buildID)
	if err != nil {
		return nil, err
	}
	rows, err := s.loadRows(ctx, buildID, info.Movies)
	if err != nil {
		return nil, err
	}
	if len(titles) != info.Movies || len(rows) != info.Movies {
		return nil, &models.CorruptIndexError{
			BuildID: buildID,
			Reason:  fmt.Sprintf("header says %d movies, found %d titles and %d rows", info.Movies, len(titles), len(rows)),
		}
	}
	matrix, err := index.NewSimilarityMatrix(rows)
	if err != nil {
		return nil, &models.CorruptIndexError{BuildID: buildID, Reason: err.Error()}
	}
	meta := index.Meta{
		BuildID:        info.BuildID,
		BuiltAt:        info.BuiltAt,
		VocabularySize: info.VocabularySize,
		Source:         info.Source,
		Fingerprint:    info.Fingerprint,
		Analysis:       info.Analysis,
	}
	return index.New(meta, titles, matrix)
}

func (s *SQLiteStore) artifactInfo(ctx context.Context, buildID string) (ArtifactInfo, error) {
	var (
		info     ArtifactInfo
		builtAt  string
		source   sql.NullString
		finger   sql.NullString
		analysis sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id, built_at, movies, vocabulary_size, source, fingerprint, analysis
		 FROM artifacts WHERE build_id = ?`, buildID,
	).Scan(&info.BuildID, &builtAt, &info.Movies, &info.VocabularySize, &source, &finger, &analysis)
	if err == sql.ErrNoRows {
		return info, fmt.Errorf("artifact not found: %s: %w", buildID, ErrNoArtifact)
	}
	if err != nil {
		return info, err
	}
	info.Source = source.String
	info.Fingerprint = finger.String
	info.Analysis = analysis.String
	if info.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return info, &models.CorruptIndexError{BuildID: buildID, Reason: "invalid build time " + builtAt}
	}
	return info, nil
}

func (s *SQLiteStore) loadTitles(ctx context.Context, buildID string) ([]models.TitleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, movie_id, title FROM artifact_titles WHERE build_id = ? ORDER BY position`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []models.TitleEntry
	for rows.Next() {
		var (
			pos int
			t   models.TitleEntry
		)
		if err := rows.Scan(&pos, &t.ID, &t.Title); err != nil {
			return nil, err
		}
		if pos != len(titles) {
			return nil, &models.CorruptIndexError{BuildID: buildID, Reason: fmt.Sprintf("title position %d missing", len(titles))}
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func (s *SQLiteStore) loadRows(ctx context.Context, buildID string, n int) ([][]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, data FROM artifact_rows WHERE build_id = ? ORDER BY position`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]float64
	for rows.Next() {
		var (
			pos  int
			data []byte
		)
		if err := rows.Scan(&pos, &data); err != nil {
			return nil, err
		}
		if pos != len(out) {
			return nil, &models.CorruptIndexError{BuildID: buildID, Reason: fmt.Sprintf("matrix row %d missing", len(out))}
		}
		row, err := decodeRow(data, n)
		if err != nil {
			return nil, &models.CorruptIndexError{BuildID: buildID, Reason: fmt.Sprintf("matrix row %d: %v", pos, err)}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListArtifacts returns stored artifacts, newest first.
func (s *SQLiteStore) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, built_at, movies, vocabulary_size, source, fingerprint, analysis
		 FROM artifacts ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []ArtifactInfo
	for rows.Next() {
		var (
			info     ArtifactInfo
			builtAt  string
			source   sql.NullString
			finger   sql.NullString
			analysis sql.NullString
		)
		if err := rows.Scan(&info.BuildID, &builtAt, &info.Movies, &info.VocabularySize, &source, &finger, &analysis); err != nil {
			return nil, err
		}
		info.Source = source.String
		info.Fingerprint = finger.String
		info.Analysis = analysis.String
		info.BuiltAt, _ = time.Parse(time.RFC3339Nano, builtAt)
		list = append(list, info)
	}
	return list, rows.Err()
}

// Prune deletes all but the newest keep artifacts and returns how many were removed.
// The newest artifact is always kept.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	list, err := s.ListArtifacts(ctx)
	if err != nil {
		return 0, err
	}
	if len(list) <= keep {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, info := range list[keep:] {
		for _, table := range []string{"artifact_rows", "artifact_titles", "artifacts"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE build_id = ?`, info.BuildID); err != nil {
				return 0, fmt.Errorf("delete %s from %s: %w", info.BuildID, table, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(list) - keep, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeRow(row []float64) []byte {
	const size = 8
	out := make([]byte, len(row)*size)
	for i, v := range row {
		binary.LittleEndian.PutUint64(out[i*size:(i+1)*size], math.Float64bits(v))
	}
	return out
}

var errRowWidth = errors.New("row width mismatch")

func decodeRow(b []byte, n int) ([]float64, error) {
	const size = 8
	if len(b) != n*size {
		return nil, fmt.Errorf("%w: %d bytes for %d columns", errRowWidth, len(b), n)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*size : (i+1)*size]))
	}
	return out, nil
}
