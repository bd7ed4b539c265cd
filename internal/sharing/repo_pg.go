package sharing

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epishare/epishare/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// ---- share_info ----

type shareInfoPG struct {
	pool *pgxpool.Pool
}

func NewShareInfoRepo(pool *pgxpool.Pool) ShareInfoRepo {
	return &shareInfoPG{pool: pool}
}

const shareInfoCols = `id, request_uuid, kind, entity_uuid, target_id, status,
	ownership_handed_over, with_associated_contacts, with_samples,
	with_event_participants, pseudonymize_personal_data,
	pseudonymize_sensitive_data, comment, created_at, updated_at`

func (r *shareInfoPG) Create(ctx context.Context, si *ShareInfo) error {
	si.ID = uuid.New()
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO share_info (
			id, request_uuid, kind, entity_uuid, target_id, status,
			ownership_handed_over, with_associated_contacts, with_samples,
			with_event_participants, pseudonymize_personal_data,
			pseudonymize_sensitive_data, comment
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		si.ID, si.RequestUUID, si.Kind, si.EntityUUID, si.TargetID, si.Status,
		si.OwnershipHandedOver, si.Options.WithAssociatedContacts, si.Options.WithSamples,
		si.Options.WithEventParticipants, si.Options.PseudonymizePersonalData,
		si.Options.PseudonymizeSensitiveData, si.Options.Comment,
	)
	return err
}

func (r *shareInfoPG) Update(ctx context.Context, si *ShareInfo) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE share_info SET
			status=$2, ownership_handed_over=$3, with_associated_contacts=$4,
			with_samples=$5, with_event_participants=$6,
			pseudonymize_personal_data=$7, pseudonymize_sensitive_data=$8,
			comment=$9, updated_at=NOW()
		WHERE id = $1`,
		si.ID, si.Status, si.OwnershipHandedOver, si.Options.WithAssociatedContacts,
		si.Options.WithSamples, si.Options.WithEventParticipants,
		si.Options.PseudonymizePersonalData, si.Options.PseudonymizeSensitiveData,
		si.Options.Comment,
	)
	return err
}

func (r *shareInfoPG) GetByRequestUUID(ctx context.Context, requestUUID string) ([]*ShareInfo, error) {
	return r.query(ctx, `SELECT `+shareInfoCols+` FROM share_info WHERE request_uuid = $1`, requestUUID)
}

func (r *shareInfoPG) ListByEntity(ctx context.Context, kind, entityUUID string) ([]*ShareInfo, error) {
	return r.query(ctx,
		`SELECT `+shareInfoCols+` FROM share_info WHERE kind = $1 AND entity_uuid = $2 ORDER BY created_at`,
		kind, entityUUID)
}

func (r *shareInfoPG) HasPendingHandover(ctx context.Context, kind, entityUUID string) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM share_info
			WHERE kind = $1 AND entity_uuid = $2
			AND ownership_handed_over AND status = $3)`,
		kind, entityUUID, StatusPending).Scan(&exists)
	return exists, err
}

func (r *shareInfoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*ShareInfo, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*ShareInfo
	for rows.Next() {
		var si ShareInfo
		if err := rows.Scan(
			&si.ID, &si.RequestUUID, &si.Kind, &si.EntityUUID, &si.TargetID, &si.Status,
			&si.OwnershipHandedOver, &si.Options.WithAssociatedContacts, &si.Options.WithSamples,
			&si.Options.WithEventParticipants, &si.Options.PseudonymizePersonalData,
			&si.Options.PseudonymizeSensitiveData, &si.Options.Comment,
			&si.CreatedAt, &si.UpdatedAt,
		); err != nil {
			return nil, err
		}
		si.Options.OrganizationID = si.TargetID
		si.Options.HandOverOwnership = si.OwnershipHandedOver
		infos = append(infos, &si)
	}
	return infos, rows.Err()
}

// ---- share_request ----

type shareRequestPG struct {
	pool *pgxpool.Pool
}

func NewShareRequestRepo(pool *pgxpool.Pool) ShareRequestRepo {
	return &shareRequestPG{pool: pool}
}

const shareRequestCols = `id, uuid, kind, status, origin_info_id, previews,
	response_comment, created_at, responded_at`

func (r *shareRequestPG) Create(ctx context.Context, sr *ShareRequest) error {
	sr.ID = uuid.New()
	previews, err := json.Marshal(sr.Previews)
	if err != nil {
		return err
	}
	_, err = connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO share_request (id, uuid, kind, status, origin_info_id, previews, response_comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sr.ID, sr.UUID, sr.Kind, sr.Status, sr.OriginInfoID, previews, sr.ResponseComment,
	)
	return err
}

func (r *shareRequestPG) Update(ctx context.Context, sr *ShareRequest) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE share_request SET status=$2, response_comment=$3, responded_at=$4
		WHERE id = $1`,
		sr.ID, sr.Status, sr.ResponseComment, sr.RespondedAt,
	)
	return err
}

func (r *shareRequestPG) GetByUUID(ctx context.Context, requestUUID string) (*ShareRequest, error) {
	return scanShareRequest(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+shareRequestCols+` FROM share_request WHERE uuid = $1`, requestUUID))
}

func (r *shareRequestPG) GetByOriginInfo(ctx context.Context, originInfoID uuid.UUID) (*ShareRequest, error) {
	return scanShareRequest(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+shareRequestCols+` FROM share_request WHERE origin_info_id = $1`, originInfoID))
}

func (r *shareRequestPG) List(ctx context.Context, status RequestStatus, limit, offset int) ([]*ShareRequest, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM share_request WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+shareRequestCols+` FROM share_request WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*ShareRequest
	for rows.Next() {
		sr, err := scanShareRequestRows(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, sr)
	}
	return requests, total, rows.Err()
}

func scanShareRequest(row pgx.Row) (*ShareRequest, error) {
	var sr ShareRequest
	var previews []byte
	err := row.Scan(&sr.ID, &sr.UUID, &sr.Kind, &sr.Status, &sr.OriginInfoID,
		&previews, &sr.ResponseComment, &sr.CreatedAt, &sr.RespondedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(previews, &sr.Previews); err != nil {
		return nil, err
	}
	return &sr, nil
}

func scanShareRequestRows(rows pgx.Rows) (*ShareRequest, error) {
	var sr ShareRequest
	var previews []byte
	err := rows.Scan(&sr.ID, &sr.UUID, &sr.Kind, &sr.Status, &sr.OriginInfoID,
		&previews, &sr.ResponseComment, &sr.CreatedAt, &sr.RespondedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(previews, &sr.Previews); err != nil {
		return nil, err
	}
	return &sr, nil
}

// ---- origin_info ----

type originInfoPG struct {
	pool *pgxpool.Pool
}

func NewOriginInfoRepo(pool *pgxpool.Pool) OriginInfoRepo {
	return &originInfoPG{pool: pool}
}

func (r *originInfoPG) Create(ctx context.Context, oi *OriginInfo) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO origin_info (
			id, sender_id, sender_name, ownership_handed_over,
			with_associated_contacts, with_samples, with_event_participants, comment
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		oi.ID, oi.SenderID, oi.SenderName, oi.OwnershipHandedOver,
		oi.WithAssociatedContacts, oi.WithSamples, oi.WithEventParticipants, oi.Comment,
	)
	return err
}

func (r *originInfoPG) Update(ctx context.Context, oi *OriginInfo) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE origin_info SET
			ownership_handed_over=$2, with_associated_contacts=$3,
			with_samples=$4, with_event_participants=$5, comment=$6
		WHERE id = $1`,
		oi.ID, oi.OwnershipHandedOver, oi.WithAssociatedContacts,
		oi.WithSamples, oi.WithEventParticipants, oi.Comment,
	)
	return err
}

func (r *originInfoPG) GetByID(ctx context.Context, id uuid.UUID) (*OriginInfo, error) {
	var oi OriginInfo
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT id, sender_id, sender_name, ownership_handed_over,
			with_associated_contacts, with_samples, with_event_participants,
			comment, created_at
		FROM origin_info WHERE id = $1`, id).Scan(
		&oi.ID, &oi.SenderID, &oi.SenderName, &oi.OwnershipHandedOver,
		&oi.WithAssociatedContacts, &oi.WithSamples, &oi.WithEventParticipants,
		&oi.Comment, &oi.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &oi, nil
}
