package facility

import (
	"context"
	"fmt"

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

const facilityCols = `id, uuid, name, type, region_id, district_id, community_id, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	if f.UUID == "" {
		f.UUID = f.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO facility (id, uuid, name, type, region_id, district_id, community_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		f.ID, f.UUID, f.Name, f.Type, f.RegionID, f.DistrictID, f.CommunityID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return scanFacility(r.conn(ctx).QueryRow(ctx, `SELECT `+facilityCols+` FROM facility WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, f *Facility) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE facility SET
			name=$2, type=$3, region_id=$4, district_id=$5, community_id=$6, updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Name, f.Type, f.RegionID, f.DistrictID, f.CommunityID,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, facilityType string, limit, offset int) ([]*Facility, int, error) {
	where := ""
	args := []interface{}{}
	if facilityType != "" {
		where = " WHERE type = $1"
		args = append(args, facilityType)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM facility`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM facility%s ORDER BY name LIMIT $%d OFFSET $%d`,
		facilityCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	facilities, err := scanFacilityRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return facilities, total, nil
}

func (r *repoPG) DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	var districtID *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT district_id FROM facility WHERE id = $1`, facilityID,
	).Scan(&districtID)
	if err != nil {
		return nil, err
	}
	return districtID, nil
}

func scanFacility(row pgx.Row) (*Facility, error) {
	f := &Facility{}
	err := row.Scan(
		&f.ID, &f.UUID, &f.Name, &f.Type,
		&f.RegionID, &f.DistrictID, &f.CommunityID,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func scanFacilityRows(rows pgx.Rows) ([]*Facility, error) {
	var facilities []*Facility
	for rows.Next() {
		f := &Facility{}
		err := rows.Scan(
			&f.ID, &f.UUID, &f.Name, &f.Type,
			&f.RegionID, &f.DistrictID, &f.CommunityID,
			&f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}
