package site

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/contextutil"
)

var ErrSiteNotFound = apperror.New(apperror.CodeNotFound, "Site not found", 404)

type Service interface {
	Create(ctx context.Context, companyID string, req CreateSiteRequest) (*SiteResponse, error)
	GetByID(ctx context.Context, companyID, id string) (*SiteResponse, error)
	List(ctx context.Context, companyID string) ([]SiteResponse, error)
	Update(ctx context.Context, companyID, id string, req UpdateSiteRequest) (*SiteResponse, error)
}

type service struct {
	repo     Repository
	recorder audit.Recorder
}

func NewService(repo Repository, recorder audit.Recorder) Service {
	return &service{repo: repo, recorder: recorder}
}

func (s *service) Create(ctx context.Context, companyID string, req CreateSiteRequest) (*SiteResponse, error) {
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "invalid company id", 400)
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}

	row := &Site{
		ID:        uuid.New(),
		CompanyID: cid,
		Name:      req.Name,
		Address:   req.Address,
		Timezone:  tz,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, companyID, audit.Entry{
		ActorID:      contextutil.GetUserID(ctx),
		Action:       audit.ActionGeofenceManage,
		TargetEntity: "site",
		TargetID:     row.ID.String(),
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		return nil, err
	}

	return mapToResponse(row), nil
}

func (s *service) GetByID(ctx context.Context, companyID, id string) (*SiteResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSiteNotFound
	}

	row, err := s.repo.GetByID(ctx, companyID, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return mapToResponse(row), nil
}

func (s *service) List(ctx context.Context, companyID string) ([]SiteResponse, error) {
	rows, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	res := make([]SiteResponse, len(rows))
	for i := range rows {
		res[i] = *mapToResponse(&rows[i])
	}
	return res, nil
}

func (s *service) Update(ctx context.Context, companyID, id string, req UpdateSiteRequest) (*SiteResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSiteNotFound
	}

	row, err := s.repo.GetByID(ctx, companyID, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}

	if req.Name != "" {
		row.Name = req.Name
	}
	if req.Address != "" {
		row.Address = req.Address
	}
	if req.Timezone != "" {
		row.Timezone = req.Timezone
	}
	if req.IsActive != nil {
		row.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, companyID, audit.Entry{
		ActorID:      contextutil.GetUserID(ctx),
		Action:       audit.ActionGeofenceManage,
		TargetEntity: "site",
		TargetID:     row.ID.String(),
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		return nil, err
	}

	return mapToResponse(row), nil
}
