package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no audit record matches.
var ErrNotFound = errors.New("audit record not found")

// AuditRecord summarizes one pipeline run. Records are write-once: saving a
// key that already exists is a no-op.
type AuditRecord struct {
	RunID           uuid.UUID       `json:"run_id"`
	UserID          string          `json:"user_id"`
	SessionID       string          `json:"session_id"`
	FileID          string          `json:"file_id"`
	Unit            string          `json:"unit"`
	InputFields     int             `json:"input_fields"`
	CleanedFields   int             `json:"cleaned_fields"`
	IsValid         bool            `json:"is_valid"`
	Confidence      float64         `json:"confidence"`
	CompletionScore float64         `json:"completion_score"`
	IssueCount      int             `json:"issue_count"`
	Result          json.RawMessage `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Key identifies the record.
func (r *AuditRecord) Key() string {
	return r.UserID + "/" + r.SessionID + "/" + r.FileID + "/" + r.RunID.String()
}

// AuditRepository stores audit records.
type AuditRepository interface {
	Save(ctx context.Context, rec *AuditRecord) error
	Get(ctx context.Context, runID uuid.UUID) (*AuditRecord, error)
}

func checkRecord(rec *AuditRecord) error {
	if rec == nil {
		return fmt.Errorf("nil audit record")
	}
	if rec.RunID == uuid.Nil {
		return fmt.Errorf("audit record without run id")
	}
	return nil
}

// =============================================================================
// POSTGRES
// =============================================================================

// PgAuditRepo stores records in the pipeline_audit table.
type PgAuditRepo struct {
	pool *pgxpool.Pool
}

func NewPgAuditRepo(pool *pgxpool.Pool) *PgAuditRepo {
	return &PgAuditRepo{pool: pool}
}

func (r *PgAuditRepo) Save(ctx context.Context, rec *AuditRecord) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if err := checkRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline_audit (
			run_id, user_id, session_id, file_id, unit,
			input_fields, cleaned_fields, is_valid, confidence, completion_score,
			issue_count, result_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, session_id, file_id, run_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		rec.RunID.String(), rec.UserID, rec.SessionID, rec.FileID, rec.Unit,
		rec.InputFields, rec.CleanedFields, rec.IsValid, rec.Confidence, rec.CompletionScore,
		rec.IssueCount, []byte(rec.Result), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

func (r *PgAuditRepo) Get(ctx context.Context, runID uuid.UUID) (*AuditRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	query := `
		SELECT run_id::text, user_id, session_id, file_id, unit,
			input_fields, cleaned_fields, is_valid, confidence, completion_score,
			issue_count, result_json, created_at
		FROM pipeline_audit WHERE run_id = $1
	`
	var (
		rec   AuditRecord
		id    string
		rjson []byte
	)
	err := r.pool.QueryRow(ctx, query, runID.String()).Scan(
		&id, &rec.UserID, &rec.SessionID, &rec.FileID, &rec.Unit,
		&rec.InputFields, &rec.CleanedFields, &rec.IsValid, &rec.Confidence, &rec.CompletionScore,
		&rec.IssueCount, &rjson, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load audit record: %w", err)
	}
	if rec.RunID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad run id %q: %w", id, err)
	}
	rec.Result = rjson
	return &rec, nil
}

// =============================================================================
// IN-MEMORY
// =============================================================================

// MemoryAuditRepo keeps records in memory.
type MemoryAuditRepo struct {
	mu      sync.RWMutex
	records map[string]*AuditRecord
	byRun   map[uuid.UUID]*AuditRecord
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{
		records: make(map[string]*AuditRecord),
		byRun:   make(map[uuid.UUID]*AuditRecord),
	}
}

func (r *MemoryAuditRepo) Save(ctx context.Context, rec *AuditRecord) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Key()]; ok {
		return nil
	}
	c := *rec
	r.records[rec.Key()] = &c
	r.byRun[rec.RunID] = &c
	return nil
}

func (r *MemoryAuditRepo) Get(ctx context.Context, runID uuid.UUID) (*AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byRun[runID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *rec
	return &c, nil
}

// Len returns the number of stored records.
func (r *MemoryAuditRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// =============================================================================
// FILE SYSTEM
// =============================================================================

// FileAuditRepo writes one JSON file per run under dir. It serves local runs
// without a database.
type FileAuditRepo struct {
	dir string
}

// NewFileAuditRepo creates dir if needed. An empty dir defaults to
// .cache/audit.
func NewFileAuditRepo(dir string) (*FileAuditRepo, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "audit")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir: %w", err)
	}
	return &FileAuditRepo{dir: dir}, nil
}

func (r *FileAuditRepo) path(runID uuid.UUID) string {
	return filepath.Join(r.dir, runID.String()+".json")
}

func (r *FileAuditRepo) Save(ctx context.Context, rec *AuditRecord) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	f, err := os.OpenFile(r.path(rec.RunID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to create audit file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	return nil
}

func (r *FileAuditRepo) Get(ctx context.Context, runID uuid.UUID) (*AuditRecord, error) {
	data, err := os.ReadFile(r.path(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec AuditRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse audit file: %w", err)
	}
	return &rec, nil
}
