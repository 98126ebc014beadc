package site

type CreateSiteRequest struct {
	Name     string `json:"name" binding:"required,max=150"`
	Address  string `json:"address" binding:"max=255"`
	Timezone string `json:"timezone" binding:"omitempty,max=64"`
}

type UpdateSiteRequest struct {
	Name     string `json:"name" binding:"omitempty,max=150"`
	Address  string `json:"address" binding:"omitempty,max=255"`
	Timezone string `json:"timezone" binding:"omitempty,max=64"`
	IsActive *bool  `json:"is_active"`
}

type SiteResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
	IsActive bool   `json:"is_active"`
}

func mapToResponse(s *Site) *SiteResponse {
	return &SiteResponse{
		ID:       s.ID.String(),
		Name:     s.Name,
		Address:  s.Address,
		Timezone: s.Timezone,
		IsActive: s.IsActive,
	}
}
