package errors

import (
	"net/http"

	"go-attend/internal/shared/apperror"
)

var (
	ErrNoActiveGeofence = apperror.New(
		apperror.CodeInvalidState,
		"No active geofence is configured for this site",
		http.StatusUnprocessableEntity,
	)

	ErrConflictNotFound = apperror.New(
		apperror.CodeNotFound,
		"Sync conflict not found",
		http.StatusNotFound,
	)

	ErrConflictAlreadyResolved = apperror.New(
		apperror.CodeInvalidState,
		"Sync conflict is already resolved",
		http.StatusConflict,
	)

	ErrSubmissionDeadLettered = apperror.New(
		apperror.CodeServiceUnavailable,
		"The submission could not be persisted and was queued for operator review",
		http.StatusServiceUnavailable,
	)
)
