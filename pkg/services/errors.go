// Package services orchestrates flow migration and guidance generation on
// top of the API clients.
package services

import (
	"errors"

	"github.com/borashehu-gorgias/flows-migrator/pkg/auth"
	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrNoFlowsSelected       = errors.New("no flows selected")
	ErrInvalidExportDocument = errors.New("invalid export document")
	ErrNoHelpCenter          = errors.New("no guidance help center configured for account")
	ErrRESTCredentialsNeeded = errors.New("help center operations require REST API credentials")

	// Authentication Errors (401 Unauthorized).
	ErrNotAuthenticated = errors.New("account is not authenticated")
)

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoFlowsSelected) ||
		errors.Is(err, ErrInvalidExportDocument) ||
		errors.Is(err, ErrNoHelpCenter) ||
		errors.Is(err, ErrRESTCredentialsNeeded) ||
		errors.Is(err, auth.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrAdminRoleRequired) ||
		errors.Is(err, auth.ErrMissingAccountID)
}

// IsAuthError checks if an error means the caller must (re)authenticate and
// should return HTTP 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, gorgias.ErrUnauthorized) ||
		errors.Is(err, auth.ErrReauthRequired)
}
