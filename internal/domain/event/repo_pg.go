package event

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

const evCols = `ev.id, ev.uuid, ev.status, ev.title, ev.disease,
	ev.region_id, ev.district_id, ev.community_id,
	ev.reporting_user_id, ev.responsible_user_id,
	ev.archived, ev.deleted, ev.origin_info_id, ev.created_at, ev.updated_at`

// eventSQLCtx maps visibility predicate fields onto the event table.
var eventSQLCtx = &jurisdiction.SQLContext{
	Columns: map[string]string{
		jurisdiction.FieldRegion:          "ev.region_id",
		jurisdiction.FieldDistrict:        "ev.district_id",
		jurisdiction.FieldCommunity:       "ev.community_id",
		jurisdiction.FieldDisease:         "ev.disease",
		jurisdiction.FieldReportingUser:   "ev.reporting_user_id",
		jurisdiction.FieldResponsibleUser: "ev.responsible_user_id",
	},
	Subqueries: map[string]string{
		jurisdiction.AssocSampleLab: `EXISTS (SELECT 1 FROM sample s
			WHERE s.event_id = ev.id AND s.lab_id = $%[1]d AND NOT s.deleted)`,
		jurisdiction.AssocCaseOrParticipantRegion: `EXISTS (SELECT 1 FROM event_participant ep
			LEFT JOIN surveillance_case sc ON sc.id = ep.resulting_case_id
			WHERE ep.event_id = ev.id AND (ep.region_id = $%[1]d OR sc.region_id = $%[1]d))`,
		jurisdiction.AssocCaseOrParticipantDistrict: `EXISTS (SELECT 1 FROM event_participant ep
			LEFT JOIN surveillance_case sc ON sc.id = ep.resulting_case_id
			WHERE ep.event_id = ev.id AND (ep.district_id = $%[1]d OR sc.district_id = $%[1]d))`,
	},
}

func (r *repoPG) Create(ctx context.Context, ev *Event) error {
	ev.ID = uuid.New()
	if ev.UUID == "" {
		ev.UUID = ev.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO event (
			id, uuid, status, title, disease,
			region_id, district_id, community_id,
			reporting_user_id, responsible_user_id,
			archived, deleted, origin_info_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		ev.ID, ev.UUID, ev.Status, ev.Title, ev.Disease,
		ev.RegionID, ev.DistrictID, ev.CommunityID,
		ev.ReportingUserID, ev.ResponsibleUserID,
		ev.Archived, ev.Deleted, ev.OriginInfoID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return scanEvent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+evCols+` FROM event ev WHERE ev.id = $1`, id))
}

func (r *repoPG) GetByUUID(ctx context.Context, uid string) (*Event, error) {
	return scanEvent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+evCols+` FROM event ev WHERE ev.uuid = $1`, uid))
}

func (r *repoPG) GetByUUIDs(ctx context.Context, uuids []string) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+evCols+` FROM event ev WHERE ev.uuid = ANY($1)`, uuids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, ev *Event) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE event SET
			status=$2, title=$3, disease=$4,
			region_id=$5, district_id=$6, community_id=$7,
			responsible_user_id=$8, archived=$9, deleted=$10,
			origin_info_id=$11, updated_at=NOW()
		WHERE id = $1`,
		ev.ID, ev.Status, ev.Title, ev.Disease,
		ev.RegionID, ev.DistrictID, ev.CommunityID,
		ev.ResponsibleUserID, ev.Archived, ev.Deleted,
		ev.OriginInfoID,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE event SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Event, int, error) {
	where, args, err := jurisdiction.CompileSQL(visibility, eventSQLCtx, 1)
	if err != nil {
		return nil, 0, err
	}
	where = `NOT ev.deleted AND ` + where

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM event ev WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	dataArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+evCols+` FROM event ev WHERE %s ORDER BY ev.created_at DESC LIMIT $%d OFFSET $%d`,
			where, n+1, n+2),
		dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEventRows(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

func (r *repoPG) AddParticipant(ctx context.Context, p *Participant) error {
	p.ID = uuid.New()
	if p.UUID == "" {
		p.UUID = p.ID.String()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO event_participant (id, uuid, event_id, person_name, region_id, district_id, resulting_case_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.UUID, p.EventID, p.PersonName, p.RegionID, p.DistrictID, p.ResultingCaseID,
	)
	return err
}

func (r *repoPG) GetParticipants(ctx context.Context, eventID uuid.UUID) ([]*Participant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, uuid, event_id, person_name, region_id, district_id, resulting_case_id, created_at
		FROM event_participant WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []*Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.UUID, &p.EventID, &p.PersonName, &p.RegionID, &p.DistrictID, &p.ResultingCaseID, &p.CreatedAt); err != nil {
			return nil, err
		}
		parts = append(parts, &p)
	}
	return parts, rows.Err()
}

func (r *repoPG) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM event_participant WHERE id = $1`, id)
	return err
}

func (r *repoPG) HasSampleForLab(ctx context.Context, eventID uuid.UUID, labID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sample s
			WHERE s.event_id = $1 AND s.lab_id = $2 AND NOT s.deleted)`,
		eventID, labID).Scan(&exists)
	return exists, err
}

func (r *repoPG) HasCaseOrParticipantIn(ctx context.Context, eventID uuid.UUID, orgField, orgID string) (bool, error) {
	col := "district_id"
	if orgField == jurisdiction.FieldRegion {
		col = "region_id"
	}
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_participant ep
			LEFT JOIN surveillance_case sc ON sc.id = ep.resulting_case_id
			WHERE ep.event_id = $1 AND (ep.`+col+` = $2 OR sc.`+col+` = $2))`,
		eventID, orgID).Scan(&exists)
	return exists, err
}


func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(
		&ev.ID, &ev.UUID, &ev.Status, &ev.Title, &ev.Disease,
		&ev.RegionID, &ev.DistrictID, &ev.CommunityID,
		&ev.ReportingUserID, &ev.ResponsibleUserID,
		&ev.Archived, &ev.Deleted, &ev.OriginInfoID, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanEventRows(rows pgx.Rows) (*Event, error) {
	var ev Event
	err := rows.Scan(
		&ev.ID, &ev.UUID, &ev.Status, &ev.Title, &ev.Disease,
		&ev.RegionID, &ev.DistrictID, &ev.CommunityID,
		&ev.ReportingUserID, &ev.ResponsibleUserID,
		&ev.Archived, &ev.Deleted, &ev.OriginInfoID, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
