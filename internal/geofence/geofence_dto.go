package geofence

type VertexRequest struct {
	Lat float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng float64 `json:"lng" binding:"required,min=-180,max=180"`
}

type CreateGeofenceRequest struct {
	SiteID      string          `json:"site_id" binding:"required,uuid"`
	Name        string          `json:"name" binding:"required"`
	Kind        string          `json:"kind" binding:"required,oneof=CIRCLE POLYGON"`
	CenterLat   *float64        `json:"center_lat"`
	CenterLng   *float64        `json:"center_lng"`
	RadiusM     *float64        `json:"radius_m"`
	Vertices    []VertexRequest `json:"vertices"`
	HysteresisM float64         `json:"hysteresis_m" binding:"min=0"`
}

type GeofenceResponse struct {
	ID          string   `json:"id"`
	CompanyID   string   `json:"company_id"`
	SiteID      string   `json:"site_id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	CenterLat   *float64 `json:"center_lat,omitempty"`
	CenterLng   *float64 `json:"center_lng,omitempty"`
	RadiusM     *float64 `json:"radius_m,omitempty"`
	Vertices    []Vertex `json:"vertices,omitempty"`
	HysteresisM float64  `json:"hysteresis_m"`
	Active      bool     `json:"active"`
}
