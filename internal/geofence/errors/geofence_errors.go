package errors

import (
	"net/http"

	"go-attend/internal/shared/apperror"
)

var (
	ErrInvalidGeometry = apperror.New(
		apperror.CodeInvalidGeometry,
		"Geofence geometry is invalid",
		http.StatusBadRequest,
	)

	ErrInvalidCoordinate = apperror.New(
		apperror.CodeInvalidCoordinate,
		"Latitude or longitude is out of range",
		http.StatusBadRequest,
	)

	ErrGeofenceNotFound = apperror.New(
		apperror.CodeNotFound,
		"Geofence not found",
		http.StatusNotFound,
	)
)
