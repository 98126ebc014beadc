package geofence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	geoerrors "go-attend/internal/geofence/errors"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/contextutil"
)

type Service interface {
	Create(ctx context.Context, companyID string, req CreateGeofenceRequest) (GeofenceResponse, error)
	GetAll(ctx context.Context, companyID string) ([]GeofenceResponse, error)
	Deactivate(ctx context.Context, companyID, id string) error
}

type service struct {
	repo     Repository
	recorder audit.Recorder
}

func NewService(repo Repository, recorder audit.Recorder) Service {
	return &service{repo: repo, recorder: recorder}
}

func (s *service) Create(ctx context.Context, companyID string, req CreateGeofenceRequest) (GeofenceResponse, error) {
	row := &Geofence{
		ID:          uuid.New(),
		CompanyID:   uuid.MustParse(companyID),
		SiteID:      uuid.MustParse(req.SiteID),
		Name:        req.Name,
		Kind:        req.Kind,
		CenterLat:   req.CenterLat,
		CenterLng:   req.CenterLng,
		RadiusM:     req.RadiusM,
		HysteresisM: req.HysteresisM,
		Active:      true,
	}
	for _, v := range req.Vertices {
		row.Vertices = append(row.Vertices, Vertex(v))
	}

	// Reject broken geometry at creation time, not at validation time.
	if err := checkGeometry(row); err != nil {
		return GeofenceResponse{}, err
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return GeofenceResponse{}, err
	}

	// Boundary changes decide future accept/reject outcomes, so the
	// audit write is synchronous and failure rolls the response back
	// into an error.
	if _, err := s.recorder.Record(ctx, companyID, audit.Entry{
		ActorID:      contextutil.GetUserID(ctx),
		Action:       audit.ActionGeofenceManage,
		TargetEntity: "geofence",
		TargetID:     row.ID.String(),
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		return GeofenceResponse{}, err
	}

	return mapToResponse(*row), nil
}

func (s *service) GetAll(ctx context.Context, companyID string) ([]GeofenceResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "invalid company id", 400)
	}
	rows, err := s.repo.FindAllByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	res := make([]GeofenceResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	return res, nil
}

func (s *service) Deactivate(ctx context.Context, companyID, id string) error {
	if _, err := s.repo.FindByID(ctx, companyID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return geoerrors.ErrGeofenceNotFound
		}
		return err
	}
	if err := s.repo.Deactivate(ctx, companyID, id); err != nil {
		return err
	}

	_, err := s.recorder.Record(ctx, companyID, audit.Entry{
		ActorID:      contextutil.GetUserID(ctx),
		Action:       audit.ActionGeofenceManage,
		TargetEntity: "geofence",
		TargetID:     id,
		Outcome:      audit.OutcomeSuccess,
	})
	return err
}

func mapToResponse(g Geofence) GeofenceResponse {
	return GeofenceResponse{
		ID:          g.ID.String(),
		CompanyID:   g.CompanyID.String(),
		SiteID:      g.SiteID.String(),
		Name:        g.Name,
		Kind:        g.Kind,
		CenterLat:   g.CenterLat,
		CenterLng:   g.CenterLng,
		RadiusM:     g.RadiusM,
		Vertices:    g.Vertices,
		HysteresisM: g.HysteresisM,
		Active:      g.Active,
	}
}
