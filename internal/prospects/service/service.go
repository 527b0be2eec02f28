// Package service implements prospect management business logic.
package service

import (
	"context"
	"errors"

	"coachflow_backend/internal/pipeline/domain"
	pipelinerepo "coachflow_backend/internal/pipeline/repository"
	"coachflow_backend/internal/prospects/repository"
	"coachflow_backend/internal/prospects/transport"
	"coachflow_backend/platform/apperr"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/phone"

	"github.com/google/uuid"
)

// StageDirectory resolves the funnel placement for new prospects.
// Satisfied by pipeline/repository.Repository.
type StageDirectory interface {
	DefaultFunnel(ctx context.Context) (domain.Funnel, error)
	ListStages(ctx context.Context, funnelID uuid.UUID) ([]domain.Stage, error)
}

// Service implements prospect management.
type Service struct {
	repo   *repository.Repository
	stages StageDirectory
	log    *logger.Logger
}

// New creates a new prospect service.
func New(repo *repository.Repository, stages StageDirectory, log *logger.Logger) *Service {
	return &Service{repo: repo, stages: stages, log: log}
}

// Create registers a new prospect and places it at the entry stage of the
// default funnel. A missing funnel is not fatal; the prospect is created
// unplaced and picked up once a funnel exists.
func (s *Service) Create(ctx context.Context, req transport.CreateProspectRequest) (transport.ProspectResponse, error) {
	p := repository.Prospect{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ChatHandle: req.ChatHandle,
		Email:      req.Email,
		Phone:      phone.NormalizeE164(req.Phone),
		Status:     domain.StatusNew,
	}

	funnel, err := s.stages.DefaultFunnel(ctx)
	switch {
	case err == nil:
		stages, err := s.stages.ListStages(ctx, funnel.ID)
		if err != nil {
			return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load funnel stages", err)
		}
		if len(stages) > 0 {
			p.FunnelID = &funnel.ID
			p.StageID = &stages[0].ID
		}
	case errors.Is(err, pipelinerepo.ErrFunnelNotFound):
		s.log.Warn("no active funnel, prospect created unplaced")
	default:
		return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to resolve default funnel", err)
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create prospect", err)
	}
	return toResponse(created), nil
}

// GetByID retrieves one prospect.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ProspectResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProspectNotFound) {
			return transport.ProspectResponse{}, apperr.NotFound("prospect not found")
		}
		return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err)
	}
	return toResponse(p), nil
}

// Update applies partial contact updates to a prospect.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateProspectRequest) (transport.ProspectResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProspectNotFound) {
			return transport.ProspectResponse{}, apperr.NotFound("prospect not found")
		}
		return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err)
	}

	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.ChatHandle != nil {
		p.ChatHandle = *req.ChatHandle
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.Phone != nil {
		p.Phone = phone.NormalizeE164(*req.Phone)
	}

	updated, err := s.repo.UpdateContact(ctx, p)
	if err != nil {
		return transport.ProspectResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update prospect", err)
	}
	return toResponse(updated), nil
}

// List returns prospects matching the filter.
func (s *Service) List(ctx context.Context, req transport.ListProspectsRequest) ([]transport.ProspectResponse, error) {
	prospects, err := s.repo.List(ctx, repository.ListParams{Status: req.Status, Limit: req.Limit})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list prospects", err)
	}

	result := make([]transport.ProspectResponse, 0, len(prospects))
	for _, p := range prospects {
		result = append(result, toResponse(p))
	}
	return result, nil
}

// Delete removes a prospect. Without cascade the call is refused while the
// prospect still owns payments or stage history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	err := s.repo.Delete(ctx, id, cascade)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrProspectNotFound):
		return apperr.NotFound("prospect not found")
	case errors.Is(err, repository.ErrProspectHasHistory):
		return apperr.Conflict("prospect has payment or pipeline history, pass cascade=true to delete anyway")
	default:
		return apperr.Wrap(apperr.KindInternal, "failed to delete prospect", err)
	}
}

func toResponse(p repository.Prospect) transport.ProspectResponse {
	return transport.ProspectResponse{
		ID:            p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		ChatHandle:    p.ChatHandle,
		Email:         p.Email,
		Phone:         p.Phone,
		FunnelID:      p.FunnelID,
		StageID:       p.StageID,
		Status:        p.Status,
		LastContactAt: p.LastContactAt,
		NextContactAt: p.NextContactAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
