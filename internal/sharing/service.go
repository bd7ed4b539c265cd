package sharing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/epishare/epishare/internal/platform/exchange"
)

// Receiver endpoint paths on partner instances.
const (
	pathRequests         = "/exchange/requests"
	pathRequestsReject   = "/exchange/requests/reject"
	pathRequestsData     = "/exchange/requests/data"
	pathRequestsAccepted = "/exchange/requests/accepted"
)

func pathSave(kind string) string { return "/exchange/" + kind + "/save" }
func pathSync(kind string) string { return "/exchange/" + kind + "/sync" }

// Transport delivers sealed bodies to partner instances. Satisfied by
// exchange.Client.
type Transport interface {
	Post(ctx context.Context, partnerID, path string, body, out any) error
	Put(ctx context.Context, partnerID, path string, body, out any) error
}

// Service orchestrates the share protocol. All remote calls are single
// attempts. Two known inconsistency windows are kept as in the wire
// protocol this implements: the remote POST happens before the local
// share rows are persisted, and an accepted request flips to ACCEPTED
// even when the notification back to the sender fails (the failure is
// returned as a warning-class exchange error).
type Service struct {
	instanceID   string
	instanceName string
	acceptReject bool

	coordinator *Coordinator
	shareInfos  ShareInfoRepo
	requests    ShareRequestRepo
	origins     OriginInfoRepo
	client      Transport
	logger      zerolog.Logger
}

func NewService(instanceID, instanceName string, acceptReject bool,
	coordinator *Coordinator, shareInfos ShareInfoRepo, requests ShareRequestRepo,
	origins OriginInfoRepo, client Transport, logger zerolog.Logger) *Service {
	return &Service{
		instanceID:   instanceID,
		instanceName: instanceName,
		acceptReject: acceptReject,
		coordinator:  coordinator,
		shareInfos:   shareInfos,
		requests:     requests,
		origins:      origins,
		client:       client,
		logger:       logger,
	}
}

// Share is the single entry point for outgoing shares. With the
// accept/reject feature on, the partner must review a request first;
// otherwise the entities go over directly.
func (s *Service) Share(ctx context.Context, kind string, uuids []string, opts Options) (string, error) {
	if s.acceptReject {
		return s.SendShareRequest(ctx, kind, uuids, opts)
	}
	return s.ShareEntities(ctx, kind, uuids, opts)
}

// SendShareRequest validates ownership for every entity, sends the
// preview request to the partner, and records PENDING share rows.
func (s *Service) SendShareRequest(ctx context.Context, kind string, uuids []string, opts Options) (string, error) {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return "", err
	}
	if opts.OrganizationID == "" {
		return "", fmt.Errorf("target organization is required")
	}
	if len(uuids) == 0 {
		return "", fmt.Errorf("nothing to share")
	}

	if verrs := s.validateOwnership(ctx, caps, kind, uuids, opts); verrs.HasErrors() {
		return "", verrs
	}

	previews := make([]Preview, 0, len(uuids))
	for _, id := range uuids {
		p, err := caps.Builder.BuildPreview(ctx, id)
		if err != nil {
			return "", fmt.Errorf("build preview for %s: %w", id, err)
		}
		previews = append(previews, *p)
	}

	requestUUID := uuid.New().String()
	env := RequestEnvelope{
		RequestUUID: requestUUID,
		Kind:        kind,
		Previews:    previews,
		OriginInfo:  s.originInfo(opts),
	}
	if err := s.client.Post(ctx, opts.OrganizationID, pathRequests, env, nil); err != nil {
		return "", fmt.Errorf("share request %s not delivered: %w", requestUUID, err)
	}

	// The request is already on the partner at this point. A failure
	// below leaves it there without local share rows; the returned
	// request uuid allows manual reconciliation.
	for _, id := range uuids {
		si := &ShareInfo{
			RequestUUID:         requestUUID,
			Kind:                kind,
			EntityUUID:          id,
			TargetID:            opts.OrganizationID,
			Status:              StatusPending,
			OwnershipHandedOver: opts.HandOverOwnership,
			Options:             opts,
		}
		if err := s.shareInfos.Create(ctx, si); err != nil {
			return requestUUID, fmt.Errorf("share request %s sent but not recorded for %s: %w", requestUUID, id, err)
		}
	}
	return requestUUID, nil
}

// SaveShareRequest stores an incoming share request after validating
// the origin info and every preview. Nothing is persisted when any
// entity fails validation.
func (s *Service) SaveShareRequest(ctx context.Context, env RequestEnvelope) error {
	caps, err := s.coordinator.For(env.Kind)
	if err != nil {
		return err
	}

	verrs := &ValidationErrors{}
	if env.OriginInfo.SenderID == "" {
		verrs.Add("origin", "sender instance is missing")
	}
	if env.RequestUUID == "" {
		verrs.Add("origin", "request uuid is missing")
	}
	if len(env.Previews) == 0 {
		verrs.Add("origin", "request contains no entities")
	}
	for _, p := range env.Previews {
		if msgs := caps.Processor.ValidatePreview(ctx, p); len(msgs) > 0 {
			verrs.Add(p.UUID, msgs...)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}

	if existing, err := s.requests.GetByUUID(ctx, env.RequestUUID); err == nil && existing != nil {
		return fmt.Errorf("share request %s already exists", env.RequestUUID)
	}

	oi := env.OriginInfo
	oi.ID = uuid.Nil
	if err := s.origins.Create(ctx, &oi); err != nil {
		return fmt.Errorf("persist origin info: %w", err)
	}
	sr := &ShareRequest{
		UUID:         env.RequestUUID,
		Kind:         env.Kind,
		Status:       StatusPending,
		OriginInfoID: oi.ID,
		Previews:     env.Previews,
	}
	if err := s.requests.Create(ctx, sr); err != nil {
		return fmt.Errorf("persist share request: %w", err)
	}
	return nil
}

// AcceptShareRequest pulls the full data from the sender, persists it,
// notifies the sender, and marks the request ACCEPTED. A failed
// notification does not roll the acceptance back.
func (s *Service) AcceptShareRequest(ctx context.Context, requestUUID string) error {
	sr, err := s.requests.GetByUUID(ctx, requestUUID)
	if err != nil {
		return fmt.Errorf("load share request: %w", err)
	}
	if sr.Status != StatusPending {
		return fmt.Errorf("share request %s is already %s", requestUUID, sr.Status)
	}
	caps, err := s.coordinator.For(sr.Kind)
	if err != nil {
		return err
	}
	oi, err := s.origins.GetByID(ctx, sr.OriginInfoID)
	if err != nil {
		return fmt.Errorf("load origin info: %w", err)
	}

	var data PayloadEnvelope
	ref := RequestReference{RequestUUID: requestUUID}
	if err := s.client.Post(ctx, oi.SenderID, pathRequestsData, ref, &data); err != nil {
		return fmt.Errorf("fetch data for request %s: %w", requestUUID, err)
	}

	verrs := &ValidationErrors{}
	for _, pl := range data.Payloads {
		if msgs := caps.Processor.ValidatePayload(ctx, pl); len(msgs) > 0 {
			verrs.Add(pl.EntityUUID, msgs...)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}

	for _, pl := range data.Payloads {
		if err := caps.Persister.PersistShared(ctx, pl, oi.ID); err != nil {
			return fmt.Errorf("persist %s %s: %w", sr.Kind, pl.EntityUUID, err)
		}
	}

	var notifyErr error
	if err := s.client.Post(ctx, oi.SenderID, pathRequestsAccepted, ref, nil); err != nil {
		s.logger.Warn().Err(err).
			Str("request", requestUUID).
			Str("partner", oi.SenderID).
			Msg("accepted notification not delivered")
		notifyErr = &exchange.Error{
			PartnerID: oi.SenderID,
			Warning:   true,
			Msg:       fmt.Sprintf("request %s accepted locally but sender not notified", requestUUID),
			Err:       err,
		}
	}

	now := time.Now()
	sr.Status = StatusAccepted
	sr.RespondedAt = &now
	if err := s.requests.Update(ctx, sr); err != nil {
		return fmt.Errorf("mark request accepted: %w", err)
	}
	return notifyErr
}

// RejectShareRequest notifies the sender and marks the incoming request
// REJECTED. Rejection never touches entity data or ownership.
func (s *Service) RejectShareRequest(ctx context.Context, requestUUID, comment string) error {
	sr, err := s.requests.GetByUUID(ctx, requestUUID)
	if err != nil {
		return fmt.Errorf("load share request: %w", err)
	}
	if sr.Status != StatusPending {
		return fmt.Errorf("share request %s is already %s", requestUUID, sr.Status)
	}
	oi, err := s.origins.GetByID(ctx, sr.OriginInfoID)
	if err != nil {
		return fmt.Errorf("load origin info: %w", err)
	}

	ref := RequestReference{RequestUUID: requestUUID, Comment: comment}
	if err := s.client.Post(ctx, oi.SenderID, pathRequestsReject, ref, nil); err != nil {
		return fmt.Errorf("reject request %s: %w", requestUUID, err)
	}

	now := time.Now()
	sr.Status = StatusRejected
	sr.ResponseComment = comment
	sr.RespondedAt = &now
	return s.requests.Update(ctx, sr)
}

// HandleRequestAccepted flips the sender-side share rows to ACCEPTED
// after the partner accepted the request.
func (s *Service) HandleRequestAccepted(ctx context.Context, requestUUID string) error {
	return s.updateShareStatus(ctx, requestUUID, StatusAccepted, "")
}

// HandleRequestRejected flips the sender-side share rows to REJECTED.
func (s *Service) HandleRequestRejected(ctx context.Context, requestUUID, comment string) error {
	return s.updateShareStatus(ctx, requestUUID, StatusRejected, comment)
}

func (s *Service) updateShareStatus(ctx context.Context, requestUUID string, status RequestStatus, comment string) error {
	infos, err := s.shareInfos.GetByRequestUUID(ctx, requestUUID)
	if err != nil {
		return fmt.Errorf("load share rows: %w", err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("unknown share request %s", requestUUID)
	}
	for _, si := range infos {
		if si.Status != StatusPending {
			return fmt.Errorf("share request %s is already %s", requestUUID, si.Status)
		}
		si.Status = status
		if comment != "" {
			si.Options.Comment = comment
		}
		if err := s.shareInfos.Update(ctx, si); err != nil {
			return err
		}
	}
	return nil
}

// GetDataForShareRequest builds the payload envelope the partner pulls
// when accepting a request. Ownership is re-validated so an entity that
// changed hands since the request fails here instead of transferring.
func (s *Service) GetDataForShareRequest(ctx context.Context, requestUUID string) (*PayloadEnvelope, error) {
	infos, err := s.shareInfos.GetByRequestUUID(ctx, requestUUID)
	if err != nil {
		return nil, fmt.Errorf("load share rows: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("unknown share request %s", requestUUID)
	}
	kind := infos[0].Kind
	opts := infos[0].Options
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return nil, err
	}

	uuids := make([]string, 0, len(infos))
	for _, si := range infos {
		if si.Status != StatusPending {
			return nil, fmt.Errorf("share request %s is already %s", requestUUID, si.Status)
		}
		uuids = append(uuids, si.EntityUUID)
	}
	// This request's own pending rows must not count as a competing
	// handover here.
	checkOpts := opts
	checkOpts.HandOverOwnership = false
	if verrs := s.validateOwnership(ctx, caps, kind, uuids, checkOpts); verrs.HasErrors() {
		return nil, verrs
	}

	env := &PayloadEnvelope{
		RequestUUID: requestUUID,
		OriginInfo:  s.originInfo(opts),
	}
	for _, id := range uuids {
		pl, err := caps.Builder.BuildPayload(ctx, id, opts)
		if err != nil {
			return nil, fmt.Errorf("build payload for %s: %w", id, err)
		}
		env.Payloads = append(env.Payloads, *pl)
	}
	return env, nil
}

// ShareEntities is the direct share path used when the partner does not
// review requests. The payloads go straight over and the share rows are
// recorded as ACCEPTED.
func (s *Service) ShareEntities(ctx context.Context, kind string, uuids []string, opts Options) (string, error) {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return "", err
	}
	if opts.OrganizationID == "" {
		return "", fmt.Errorf("target organization is required")
	}
	if len(uuids) == 0 {
		return "", fmt.Errorf("nothing to share")
	}
	if verrs := s.validateOwnership(ctx, caps, kind, uuids, opts); verrs.HasErrors() {
		return "", verrs
	}

	requestUUID := uuid.New().String()
	env := PayloadEnvelope{
		RequestUUID: requestUUID,
		OriginInfo:  s.originInfo(opts),
	}
	for _, id := range uuids {
		pl, err := caps.Builder.BuildPayload(ctx, id, opts)
		if err != nil {
			return "", fmt.Errorf("build payload for %s: %w", id, err)
		}
		env.Payloads = append(env.Payloads, *pl)
	}

	if err := s.client.Post(ctx, opts.OrganizationID, pathSave(kind), env, nil); err != nil {
		return "", fmt.Errorf("share %s not delivered: %w", requestUUID, err)
	}

	for _, id := range uuids {
		si := &ShareInfo{
			RequestUUID:         requestUUID,
			Kind:                kind,
			EntityUUID:          id,
			TargetID:            opts.OrganizationID,
			Status:              StatusAccepted,
			OwnershipHandedOver: opts.HandOverOwnership,
			Options:             opts,
		}
		if err := s.shareInfos.Create(ctx, si); err != nil {
			return requestUUID, fmt.Errorf("share %s sent but not recorded for %s: %w", requestUUID, id, err)
		}
	}
	return requestUUID, nil
}

// SaveSharedEntities persists directly shared entities after validating
// all of them. Nothing is persisted when any payload fails.
func (s *Service) SaveSharedEntities(ctx context.Context, kind string, env PayloadEnvelope) error {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return err
	}

	verrs := &ValidationErrors{}
	if env.OriginInfo.SenderID == "" {
		verrs.Add("origin", "sender instance is missing")
	}
	for _, pl := range env.Payloads {
		if msgs := caps.Processor.ValidatePayload(ctx, pl); len(msgs) > 0 {
			verrs.Add(pl.EntityUUID, msgs...)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}

	oi := env.OriginInfo
	oi.ID = uuid.Nil
	if err := s.origins.Create(ctx, &oi); err != nil {
		return fmt.Errorf("persist origin info: %w", err)
	}
	for _, pl := range env.Payloads {
		if err := caps.Persister.PersistShared(ctx, pl, oi.ID); err != nil {
			return fmt.Errorf("persist %s %s: %w", kind, pl.EntityUUID, err)
		}
	}
	return nil
}

// ReturnEntity hands a previously received entity back to its origin
// instance. Ownership handover is forced and the association flags the
// entity arrived with are re-enabled so the full graph travels back.
func (s *Service) ReturnEntity(ctx context.Context, kind, entityUUID string, opts Options) error {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return err
	}
	originID, err := caps.Gateway.OriginInfoOf(ctx, entityUUID)
	if err != nil {
		return err
	}
	if originID == nil {
		return fmt.Errorf("%s %s was not received from another instance", kind, entityUUID)
	}
	oi, err := s.origins.GetByID(ctx, *originID)
	if err != nil {
		return fmt.Errorf("load origin info: %w", err)
	}
	if !oi.OwnershipHandedOver {
		return fmt.Errorf("%s %s is not owned by this instance", kind, entityUUID)
	}

	opts.OrganizationID = oi.SenderID
	opts.HandOverOwnership = true
	opts.WithAssociatedContacts = opts.WithAssociatedContacts || oi.WithAssociatedContacts
	opts.WithSamples = opts.WithSamples || oi.WithSamples
	opts.WithEventParticipants = opts.WithEventParticipants || oi.WithEventParticipants

	pl, err := caps.Builder.BuildPayload(ctx, entityUUID, opts)
	if err != nil {
		return fmt.Errorf("build payload for %s: %w", entityUUID, err)
	}

	requestUUID := uuid.New().String()
	if sr, err := s.requests.GetByOriginInfo(ctx, oi.ID); err == nil && sr != nil {
		requestUUID = sr.UUID
	}

	env := PayloadEnvelope{
		RequestUUID: requestUUID,
		OriginInfo:  s.originInfo(opts),
		Payloads:    []Payload{*pl},
	}
	if err := s.client.Put(ctx, oi.SenderID, pathSave(kind), env, nil); err != nil {
		return fmt.Errorf("return %s %s: %w", kind, entityUUID, err)
	}

	oi.OwnershipHandedOver = false
	if err := s.origins.Update(ctx, oi); err != nil {
		return fmt.Errorf("entity returned but origin info not updated: %w", err)
	}

	si := &ShareInfo{
		RequestUUID:         requestUUID,
		Kind:                kind,
		EntityUUID:          entityUUID,
		TargetID:            oi.SenderID,
		Status:              StatusAccepted,
		OwnershipHandedOver: true,
		Options:             opts,
	}
	return s.shareInfos.Create(ctx, si)
}

// SaveReturnedEntity takes an entity back on the original sender. The
// pending handover share rows are cleared so the entity is editable
// here again.
func (s *Service) SaveReturnedEntity(ctx context.Context, kind string, env PayloadEnvelope) error {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return err
	}

	verrs := &ValidationErrors{}
	for _, pl := range env.Payloads {
		if msgs := caps.Processor.ValidatePayload(ctx, pl); len(msgs) > 0 {
			verrs.Add(pl.EntityUUID, msgs...)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}

	for _, pl := range env.Payloads {
		if err := caps.Persister.PersistReturned(ctx, pl); err != nil {
			return fmt.Errorf("persist returned %s %s: %w", kind, pl.EntityUUID, err)
		}
		infos, err := s.shareInfos.ListByEntity(ctx, kind, pl.EntityUUID)
		if err != nil {
			return err
		}
		for _, si := range infos {
			if si.TargetID == env.OriginInfo.SenderID && si.OwnershipHandedOver {
				si.OwnershipHandedOver = false
				if err := s.shareInfos.Update(ctx, si); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SyncEntity pushes the current state of an owned entity to every
// partner it has been shared with, updating each share row's options.
func (s *Service) SyncEntity(ctx context.Context, kind, entityUUID string, opts Options) error {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return err
	}
	infos, err := s.shareInfos.ListByEntity(ctx, kind, entityUUID)
	if err != nil {
		return err
	}

	synced := 0
	for _, si := range infos {
		if si.Status != StatusAccepted {
			continue
		}
		sendOpts := si.Options
		sendOpts.OrganizationID = si.TargetID
		sendOpts.WithAssociatedContacts = sendOpts.WithAssociatedContacts || opts.WithAssociatedContacts
		sendOpts.WithSamples = sendOpts.WithSamples || opts.WithSamples
		sendOpts.WithEventParticipants = sendOpts.WithEventParticipants || opts.WithEventParticipants

		pl, err := caps.Builder.BuildPayload(ctx, entityUUID, sendOpts)
		if err != nil {
			return fmt.Errorf("build payload for %s: %w", entityUUID, err)
		}
		env := PayloadEnvelope{
			RequestUUID: si.RequestUUID,
			OriginInfo:  s.originInfo(sendOpts),
			Payloads:    []Payload{*pl},
		}
		if err := s.client.Post(ctx, si.TargetID, pathSync(kind), env, nil); err != nil {
			return fmt.Errorf("sync %s %s with %s: %w", kind, entityUUID, si.TargetID, err)
		}

		si.Options = sendOpts
		if err := s.shareInfos.Update(ctx, si); err != nil {
			return err
		}
		synced++
	}
	if synced == 0 {
		return fmt.Errorf("%s %s has no accepted shares to sync", kind, entityUUID)
	}
	return nil
}

// SaveSyncedEntity applies a sync update from the owning instance.
func (s *Service) SaveSyncedEntity(ctx context.Context, kind string, env PayloadEnvelope) error {
	caps, err := s.coordinator.For(kind)
	if err != nil {
		return err
	}

	verrs := &ValidationErrors{}
	for _, pl := range env.Payloads {
		if msgs := caps.Processor.ValidatePayload(ctx, pl); len(msgs) > 0 {
			verrs.Add(pl.EntityUUID, msgs...)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}

	for _, pl := range env.Payloads {
		if err := caps.Persister.PersistSynced(ctx, pl); err != nil {
			return fmt.Errorf("persist synced %s %s: %w", kind, pl.EntityUUID, err)
		}
	}
	return nil
}

// ListIncomingRequests returns incoming share requests by status.
func (s *Service) ListIncomingRequests(ctx context.Context, status RequestStatus, limit, offset int) ([]*ShareRequest, int, error) {
	return s.requests.List(ctx, status, limit, offset)
}

// SharesOfEntity returns the share history of one entity.
func (s *Service) SharesOfEntity(ctx context.Context, kind, entityUUID string) ([]*ShareInfo, error) {
	return s.shareInfos.ListByEntity(ctx, kind, entityUUID)
}

// validateOwnership collects, per entity, every reason it cannot be
// shared right now. All checks run before any network traffic.
func (s *Service) validateOwnership(ctx context.Context, caps Capabilities, kind string, uuids []string, opts Options) *ValidationErrors {
	verrs := &ValidationErrors{}
	for _, id := range uuids {
		exists, err := caps.Gateway.Exists(ctx, id)
		if err != nil {
			verrs.Add(id, fmt.Sprintf("lookup failed: %v", err))
			continue
		}
		if !exists {
			verrs.Add(id, "entity does not exist")
			continue
		}
		originID, err := caps.Gateway.OriginInfoOf(ctx, id)
		if err != nil {
			verrs.Add(id, fmt.Sprintf("origin lookup failed: %v", err))
			continue
		}
		if originID != nil {
			oi, err := s.origins.GetByID(ctx, *originID)
			if err != nil {
				verrs.Add(id, fmt.Sprintf("origin lookup failed: %v", err))
				continue
			}
			if !oi.OwnershipHandedOver {
				verrs.Add(id, "entity is owned by another instance")
				continue
			}
		}
		if opts.HandOverOwnership {
			pending, err := s.shareInfos.HasPendingHandover(ctx, kind, id)
			if err != nil {
				verrs.Add(id, fmt.Sprintf("handover lookup failed: %v", err))
				continue
			}
			if pending {
				verrs.Add(id, "ownership handover is already pending")
			}
		}
	}
	return verrs
}

func (s *Service) originInfo(opts Options) OriginInfo {
	return OriginInfo{
		SenderID:               s.instanceID,
		SenderName:             s.instanceName,
		OwnershipHandedOver:    opts.HandOverOwnership,
		WithAssociatedContacts: opts.WithAssociatedContacts,
		WithSamples:            opts.WithSamples,
		WithEventParticipants:  opts.WithEventParticipants,
		Comment:                opts.Comment,
	}
}
