package user

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

const userCols = `id, user_name, first_name, last_name, jurisdiction_level,
	region_id, district_id, community_id, facility_id, lab_id,
	limited_disease, roles, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (
			id, user_name, first_name, last_name, jurisdiction_level,
			region_id, district_id, community_id, facility_id, lab_id,
			limited_disease, roles, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		u.ID, u.UserName, u.FirstName, u.LastName, u.Level,
		u.RegionID, u.DistrictID, u.CommunityID, u.FacilityID, u.LabID,
		u.LimitedDisease, roleStrings(u.Roles), u.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *repoPG) GetByUserName(ctx context.Context, userName string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE user_name = $1`, userName))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET
			user_name=$2, first_name=$3, last_name=$4, jurisdiction_level=$5,
			region_id=$6, district_id=$7, community_id=$8, facility_id=$9, lab_id=$10,
			limited_disease=$11, roles=$12, active=$13, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.UserName, u.FirstName, u.LastName, u.Level,
		u.RegionID, u.DistrictID, u.CommunityID, u.FacilityID, u.LabID,
		u.LimitedDisease, roleStrings(u.Roles), u.Active,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM app_user ORDER BY user_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(ss []string) []Role {
	out := make([]Role, len(ss))
	for i, s := range ss {
		out[i] = Role(s)
	}
	return out
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var roles []string
	err := row.Scan(
		&u.ID, &u.UserName, &u.FirstName, &u.LastName, &u.Level,
		&u.RegionID, &u.DistrictID, &u.CommunityID, &u.FacilityID, &u.LabID,
		&u.LimitedDisease, &roles, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = rolesFromStrings(roles)
	return &u, nil
}

func scanUserRows(rows pgx.Rows) (*User, error) {
	var u User
	var roles []string
	err := rows.Scan(
		&u.ID, &u.UserName, &u.FirstName, &u.LastName, &u.Level,
		&u.RegionID, &u.DistrictID, &u.CommunityID, &u.FacilityID, &u.LabID,
		&u.LimitedDisease, &roles, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = rolesFromStrings(roles)
	return &u, nil
}
