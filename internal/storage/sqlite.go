package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for students, evaluations, and
// grounding reference docs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "preceptor.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under the write paths
	// (evaluations are append-heavy); busy_timeout and WAL cover the readers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies any embedded SQL migration files not yet recorded in
// schema_version. Files run in ascending filename order, one transaction each.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := s.applyMigration(entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(name string) error {
	version, err := parseMigrationVersion(name)
	if err != nil {
		return err
	}

	var applied int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
		return fmt.Errorf("checking migration %d: %w", version, err)
	}
	if applied > 0 {
		return nil
	}

	content, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
	}
	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("applying migration %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		tx.Rollback()
		return fmt.Errorf("recording migration %d: %w", version, err)
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Students ---

// UpsertStudent inserts or refreshes a roster entry.
func (s *Store) UpsertStudent(st StudentRow) error {
	_, err := s.db.Exec(`
		INSERT INTO students (id, name, class_standing) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, class_standing = excluded.class_standing`,
		st.ID, st.Name, st.ClassStanding,
	)
	return err
}

// GetStudent returns the roster entry for id, or ErrNotFound.
func (s *Store) GetStudent(id string) (StudentRow, error) {
	var st StudentRow
	err := s.db.QueryRow(`SELECT id, name, class_standing FROM students WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.ClassStanding)
	if err == sql.ErrNoRows {
		return StudentRow{}, ErrNotFound
	}
	if err != nil {
		return StudentRow{}, err
	}
	return st, nil
}

// ListStudents returns the roster ordered by id.
func (s *Store) ListStudents() ([]StudentRow, error) {
	rows, err := s.db.Query(`SELECT id, name, class_standing FROM students ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []StudentRow
	for rows.Next() {
		var st StudentRow
		if err := rows.Scan(&st.ID, &st.Name, &st.ClassStanding); err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// --- Evaluations ---

// SaveEvaluation appends a completed evaluation. Records are never updated.
func (s *Store) SaveEvaluation(e EvaluationRecord) error {
	acJSON, err := json.Marshal(e.Competencies)
	if err != nil {
		return fmt.Errorf("marshaling competency scores: %w", err)
	}
	pcJSON, err := json.Marshal(e.Behaviors)
	if err != nil {
		return fmt.Errorf("marshaling behavior scores: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO evaluations (id, student_id, case_type, ac_scores, pc_scores, comments, focus_areas, performance_level, completion_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.CaseType, string(acJSON), string(pcJSON),
		e.Comments, e.FocusAreas, e.PerformanceLevel, e.CompletionDate.UTC().Format(time.RFC3339),
	)
	return err
}

// ListEvaluationsByStudent returns up to limit evaluations for one student,
// newest completion date first. This is the History Miner's input contract.
//
// A row with malformed score JSON is returned with that score slice nil (and
// a logged warning) so the remaining fields still feed mining.
func (s *Store) ListEvaluationsByStudent(studentID string, limit int) ([]EvaluationRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, student_id, case_type, ac_scores, pc_scores, comments, focus_areas, performance_level, completion_date
		FROM evaluations WHERE student_id = ? ORDER BY completion_date DESC LIMIT ?`,
		studentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EvaluationRecord
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// GetEvaluation returns one evaluation by id, or ErrNotFound.
func (s *Store) GetEvaluation(id string) (EvaluationRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, student_id, case_type, ac_scores, pc_scores, comments, focus_areas, performance_level, completion_date
		FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if err == sql.ErrNoRows {
		return EvaluationRecord{}, ErrNotFound
	}
	if err != nil {
		return EvaluationRecord{}, err
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (EvaluationRecord, error) {
	var e EvaluationRecord
	var acJSON, pcJSON, completed string
	if err := row.Scan(&e.ID, &e.StudentID, &e.CaseType, &acJSON, &pcJSON,
		&e.Comments, &e.FocusAreas, &e.PerformanceLevel, &completed); err != nil {
		return EvaluationRecord{}, err
	}

	if err := json.Unmarshal([]byte(acJSON), &e.Competencies); err != nil {
		slog.Warn("evaluation has malformed competency scores; skipping them", "evaluation", e.ID, "error", err)
		e.Competencies = nil
	}
	if err := json.Unmarshal([]byte(pcJSON), &e.Behaviors); err != nil {
		slog.Warn("evaluation has malformed behavior scores; skipping them", "evaluation", e.ID, "error", err)
		e.Behaviors = nil
	}

	t, err := time.Parse(time.RFC3339, completed)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("parsing completion_date: %w", err)
	}
	e.CompletionDate = t
	return e, nil
}

// --- Reference docs ---

// SaveReferenceDoc stores a grounding-corpus document.
func (s *Store) SaveReferenceDoc(d ReferenceDoc) error {
	_, err := s.db.Exec(`
		INSERT INTO reference_docs (id, title, content, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Content, d.Source, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// SearchReferenceDocs returns docs whose title or content contains every one
// of the given terms (case-insensitive), newest first.
func (s *Store) SearchReferenceDocs(terms []string, limit int) ([]ReferenceDoc, error) {
	query := `SELECT id, title, content, source, created_at FROM reference_docs`
	var args []any
	var clauses []string
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		clauses = append(clauses, `(title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ReferenceDoc
	for rows.Next() {
		var d ReferenceDoc
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Source, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		d.CreatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}
