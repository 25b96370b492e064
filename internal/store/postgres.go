package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appshots/internal/models"
)

// ErrExportNotFound is returned when no export record matches.
var ErrExportNotFound = errors.New("export record not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store wraps pgxpool for Postgres persistence of finished exports.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RecordExportParams collects inputs required to insert an export record.
type RecordExportParams struct {
	JobID          string
	ProjectID      string
	Owner          string
	ZipURL         string
	StorageKey     string
	FileCount      int
	TotalSizeBytes int64
	Languages      []string
	DeviceIDs      []string
	TemplateID     string
}

// RecordExport inserts a completed export. Recording the same job twice
// returns the existing row.
func (s *Store) RecordExport(ctx context.Context, p RecordExportParams) (models.ExportRecord, error) {
	if p.JobID == "" {
		return models.ExportRecord{}, errors.New("record export: missing job id")
	}
	if p.Languages == nil {
		p.Languages = []string{}
	}
	if p.DeviceIDs == nil {
		p.DeviceIDs = []string{}
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO exports (id, job_id, project_id, owner, zip_url, storage_key, file_count, total_size_bytes, languages, device_ids, template_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO NOTHING
	`, id, p.JobID, p.ProjectID, p.Owner, p.ZipURL, p.StorageKey, p.FileCount, p.TotalSizeBytes, p.Languages, p.DeviceIDs, p.TemplateID, now)
	if err != nil {
		return models.ExportRecord{}, fmt.Errorf("insert export: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.exportByJob(ctx, p.JobID)
	}

	return models.ExportRecord{
		ID:             id,
		JobID:          p.JobID,
		ProjectID:      p.ProjectID,
		Owner:          p.Owner,
		ZipURL:         p.ZipURL,
		StorageKey:     p.StorageKey,
		FileCount:      p.FileCount,
		TotalSizeBytes: p.TotalSizeBytes,
		Languages:      p.Languages,
		DeviceIDs:      p.DeviceIDs,
		TemplateID:     p.TemplateID,
		CreatedAt:      now,
	}, nil
}

const exportColumns = `id, job_id, project_id, owner, zip_url, storage_key, file_count, total_size_bytes, languages, device_ids, template_id, created_at`

// GetExport fetches an export record by id.
func (s *Store) GetExport(ctx context.Context, id string) (models.ExportRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.ExportRecord{}, ErrExportNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = $1`, id)
	return scanExport(row)
}

func (s *Store) exportByJob(ctx context.Context, jobID string) (models.ExportRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+exportColumns+` FROM exports WHERE job_id = $1`, jobID)
	return scanExport(row)
}

// ListExports returns the newest exports of a project first.
func (s *Store) ListExports(ctx context.Context, projectID string, limit int) ([]models.ExportRecord, error) {
	limit = clampLimit(limit)
	rows, err := s.pool.Query(ctx, `
		SELECT `+exportColumns+`
		FROM exports WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExportRecord, 0, limit)
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}

func scanExport(row pgx.Row) (models.ExportRecord, error) {
	var rec models.ExportRecord
	var id uuid.UUID
	err := row.Scan(&id, &rec.JobID, &rec.ProjectID, &rec.Owner, &rec.ZipURL, &rec.StorageKey,
		&rec.FileCount, &rec.TotalSizeBytes, &rec.Languages, &rec.DeviceIDs, &rec.TemplateID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExportRecord{}, ErrExportNotFound
	}
	if err != nil {
		return models.ExportRecord{}, fmt.Errorf("scan export: %w", err)
	}
	rec.ID = id.String()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
