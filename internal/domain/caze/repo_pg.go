package caze

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epishare/epishare/internal/jurisdiction"
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

const caseCols = `sc.id, sc.uuid, sc.disease, sc.classification, sc.person_name,
	sc.region_id, sc.district_id, sc.community_id, sc.facility_id,
	sc.reporting_user_id, sc.responsible_user_id,
	sc.archived, sc.deleted, sc.origin_info_id, sc.created_at, sc.updated_at`

var caseSQLCtx = &jurisdiction.SQLContext{
	Columns: map[string]string{
		jurisdiction.FieldRegion:          "sc.region_id",
		jurisdiction.FieldDistrict:        "sc.district_id",
		jurisdiction.FieldCommunity:       "sc.community_id",
		jurisdiction.FieldDisease:         "sc.disease",
		jurisdiction.FieldReportingUser:   "sc.reporting_user_id",
		jurisdiction.FieldResponsibleUser: "sc.responsible_user_id",
	},
	Subqueries: map[string]string{
		jurisdiction.AssocSampleLab: `EXISTS (SELECT 1 FROM sample s
			WHERE s.case_id = sc.id AND s.lab_id = $%[1]d AND NOT s.deleted)`,
	},
}

func (r *repoPG) Create(ctx context.Context, cs *Case) error {
	cs.ID = uuid.New()
	if cs.UUID == "" {
		cs.UUID = cs.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO surveillance_case (
			id, uuid, disease, classification, person_name,
			region_id, district_id, community_id, facility_id,
			reporting_user_id, responsible_user_id,
			archived, deleted, origin_info_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		cs.ID, cs.UUID, cs.Disease, cs.Classification, cs.PersonName,
		cs.RegionID, cs.DistrictID, cs.CommunityID, cs.FacilityID,
		cs.ReportingUserID, cs.ResponsibleUserID,
		cs.Archived, cs.Deleted, cs.OriginInfoID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+` FROM surveillance_case sc WHERE sc.id = $1`, id))
}

func (r *repoPG) GetByUUID(ctx context.Context, uid string) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+` FROM surveillance_case sc WHERE sc.uuid = $1`, uid))
}

func (r *repoPG) GetByUUIDs(ctx context.Context, uuids []string) ([]*Case, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caseCols+` FROM surveillance_case sc WHERE sc.uuid = ANY($1)`, uuids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		cs, err := scanCaseRows(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, cs)
	}
	return cases, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, cs *Case) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE surveillance_case SET
			disease=$2, classification=$3, person_name=$4,
			region_id=$5, district_id=$6, community_id=$7, facility_id=$8,
			responsible_user_id=$9, archived=$10, deleted=$11,
			origin_info_id=$12, updated_at=NOW()
		WHERE id = $1`,
		cs.ID, cs.Disease, cs.Classification, cs.PersonName,
		cs.RegionID, cs.DistrictID, cs.CommunityID, cs.FacilityID,
		cs.ResponsibleUserID, cs.Archived, cs.Deleted,
		cs.OriginInfoID,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE surveillance_case SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Case, int, error) {
	where, args, err := jurisdiction.CompileSQL(visibility, caseSQLCtx, 1)
	if err != nil {
		return nil, 0, err
	}
	where = `NOT sc.deleted AND ` + where

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM surveillance_case sc WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	dataArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+caseCols+` FROM surveillance_case sc WHERE %s ORDER BY sc.created_at DESC LIMIT $%d OFFSET $%d`,
			where, n+1, n+2),
		dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		cs, err := scanCaseRows(rows)
		if err != nil {
			return nil, 0, err
		}
		cases = append(cases, cs)
	}
	return cases, total, rows.Err()
}

func (r *repoPG) AddContact(ctx context.Context, ct *Contact) error {
	ct.ID = uuid.New()
	if ct.UUID == "" {
		ct.UUID = ct.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO contact (id, uuid, case_id, person_name, region_id, district_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ct.ID, ct.UUID, ct.CaseID, ct.PersonName, ct.RegionID, ct.DistrictID, ct.Status,
	)
	return err
}

func (r *repoPG) GetContacts(ctx context.Context, caseID uuid.UUID) ([]*Contact, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, uuid, case_id, person_name, region_id, district_id, status, created_at
		FROM contact WHERE case_id = $1`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		var ct Contact
		if err := rows.Scan(&ct.ID, &ct.UUID, &ct.CaseID, &ct.PersonName, &ct.RegionID, &ct.DistrictID, &ct.Status, &ct.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &ct)
	}
	return contacts, rows.Err()
}

func (r *repoPG) GetContactByUUID(ctx context.Context, uid string) (*Contact, error) {
	var ct Contact
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, uuid, case_id, person_name, region_id, district_id, status, created_at
		FROM contact WHERE uuid = $1`, uid).Scan(
		&ct.ID, &ct.UUID, &ct.CaseID, &ct.PersonName, &ct.RegionID, &ct.DistrictID, &ct.Status, &ct.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *repoPG) UpdateContact(ctx context.Context, ct *Contact) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE contact SET person_name = $2, region_id = $3, district_id = $4, status = $5
		WHERE id = $1`,
		ct.ID, ct.PersonName, ct.RegionID, ct.DistrictID, ct.Status,
	)
	return err
}

func (r *repoPG) RemoveContact(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM contact WHERE id = $1`, id)
	return err
}

func (r *repoPG) HasSampleForLab(ctx context.Context, caseID uuid.UUID, labID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sample s
			WHERE s.case_id = $1 AND s.lab_id = $2 AND NOT s.deleted)`,
		caseID, labID).Scan(&exists)
	return exists, err
}

func scanCase(row pgx.Row) (*Case, error) {
	var cs Case
	err := row.Scan(
		&cs.ID, &cs.UUID, &cs.Disease, &cs.Classification, &cs.PersonName,
		&cs.RegionID, &cs.DistrictID, &cs.CommunityID, &cs.FacilityID,
		&cs.ReportingUserID, &cs.ResponsibleUserID,
		&cs.Archived, &cs.Deleted, &cs.OriginInfoID, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func scanCaseRows(rows pgx.Rows) (*Case, error) {
	var cs Case
	err := rows.Scan(
		&cs.ID, &cs.UUID, &cs.Disease, &cs.Classification, &cs.PersonName,
		&cs.RegionID, &cs.DistrictID, &cs.CommunityID, &cs.FacilityID,
		&cs.ReportingUserID, &cs.ResponsibleUserID,
		&cs.Archived, &cs.Deleted, &cs.OriginInfoID, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}
