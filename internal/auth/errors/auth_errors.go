package errors

import (
	"net/http"

	"go-attend/internal/shared/apperror"
)

var (
	ErrInvalidCredentials = apperror.New(
		apperror.CodeUnauthorized,
		"Email or password is incorrect",
		http.StatusUnauthorized,
	)

	ErrInvalidToken = apperror.New(
		"INVALID_TOKEN",
		"Token is invalid",
		http.StatusUnauthorized,
	)

	ErrTokenExpired = apperror.New(
		"TOKEN_EXPIRED",
		"Token has expired",
		http.StatusUnauthorized,
	)

	ErrInvalidRefreshToken = apperror.New(
		"INVALID_TOKEN",
		"Refresh token is invalid",
		http.StatusUnauthorized,
	)

	ErrInvalidUserID = apperror.New(
		apperror.CodeInvalidInput,
		"User ID is not a valid UUID",
		http.StatusBadRequest,
	)

	ErrUserNotFound = apperror.New(
		apperror.CodeNotFound,
		"User not found",
		http.StatusNotFound,
	)

	ErrTokenGenerationFailed = apperror.New(
		apperror.CodeInternalError,
		"Failed to generate token",
		http.StatusInternalServerError,
	)

	ErrEmailAlreadyRegistered = apperror.New(
		apperror.CodeConflict,
		"Email is already registered",
		http.StatusConflict,
	)

	ErrForbidden = apperror.New(
		apperror.CodeForbidden,
		"You do not have permission to access this resource",
		http.StatusForbidden,
	)
)
