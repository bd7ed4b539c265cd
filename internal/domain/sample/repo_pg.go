package sample

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epishare/epishare/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const sampleCols = `s.id, s.uuid, s.case_id, s.event_id, s.lab_id, s.purpose,
	s.pathogen_test_result, s.reporting_user_id, s.deleted, s.origin_info_id,
	s.created_at, s.updated_at`

func (r *repoPG) Create(ctx context.Context, s *Sample) error {
	s.ID = uuid.New()
	if s.UUID == "" {
		s.UUID = s.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sample (
			id, uuid, case_id, event_id, lab_id, purpose,
			pathogen_test_result, reporting_user_id, deleted, origin_info_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.UUID, s.CaseID, s.EventID, s.LabID, s.Purpose,
		s.PathogenTestResult, s.ReportingUserID, s.Deleted, s.OriginInfoID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return scanSample(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+` FROM sample s WHERE s.id = $1`, id))
}

func (r *repoPG) GetByUUID(ctx context.Context, uid string) (*Sample, error) {
	return scanSample(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+` FROM sample s WHERE s.uuid = $1`, uid))
}

func (r *repoPG) Update(ctx context.Context, s *Sample) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE sample SET
			lab_id=$2, purpose=$3, pathogen_test_result=$4,
			deleted=$5, origin_info_id=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.LabID, s.Purpose, s.PathogenTestResult,
		s.Deleted, s.OriginInfoID,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE sample SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*Sample, error) {
	return r.list(ctx, `SELECT `+sampleCols+` FROM sample s WHERE s.case_id = $1 AND NOT s.deleted`, caseID)
}

func (r *repoPG) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Sample, error) {
	return r.list(ctx, `SELECT `+sampleCols+` FROM sample s WHERE s.event_id = $1 AND NOT s.deleted`, eventID)
}

func (r *repoPG) ListByLab(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*Sample, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sample s WHERE s.lab_id = $1 AND NOT s.deleted`, labID).Scan(&total); err != nil {
		return nil, 0, err
	}
	samples, err := r.list(ctx,
		`SELECT `+sampleCols+` FROM sample s WHERE s.lab_id = $1 AND NOT s.deleted ORDER BY s.created_at DESC LIMIT $2 OFFSET $3`,
		labID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return samples, total, nil
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Sample, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(
			&s.ID, &s.UUID, &s.CaseID, &s.EventID, &s.LabID, &s.Purpose,
			&s.PathogenTestResult, &s.ReportingUserID, &s.Deleted, &s.OriginInfoID,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(
		&s.ID, &s.UUID, &s.CaseID, &s.EventID, &s.LabID, &s.Purpose,
		&s.PathogenTestResult, &s.ReportingUserID, &s.Deleted, &s.OriginInfoID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
