// cmd/api/errors.go
// This file contains all error-response helpers for the application.
// Every error body has the shape {"error": string, "details"?: string}.
package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aoideee/school-library/internal/data"
)

// logError logs an internal error at ERROR level with the request method and URL for context.
func (app *applicationDependencies) logError(r *http.Request, err error) {
	app.logger.Error(err.Error(),
		slog.String("request_method", r.Method),
		slog.String("request_url", r.URL.String()),
		slog.String("request_id", requestIDFrom(r.Context())),
	)
}

// errorResponse sends a JSON error envelope with the given status code and message.
// It is the low-level building block used by all the specific error helpers below.
func (app *applicationDependencies) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.errorDetailResponse(w, r, status, message, "")
}

// errorDetailResponse is errorResponse with an optional human-readable
// explanation in "details".
func (app *applicationDependencies) errorDetailResponse(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	body := envelope{"error": message}
	if details != "" {
		body["details"] = details
	}
	err := app.writeJSON(w, status, body, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// serverErrorResponse logs a 500-level error and sends a generic message to the client.
// We never expose internal error details to the client for security reasons.
func (app *applicationDependencies) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

// notFoundResponse sends a 404 Not Found error.
func (app *applicationDependencies) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
}

// methodNotAllowedResponse sends a 405 Method Not Allowed error.
func (app *applicationDependencies) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := "the " + r.Method + " method is not supported for this resource"
	app.errorResponse(w, r, http.StatusMethodNotAllowed, message)
}

// badRequestResponse sends a 400 Bad Request error with the error message from the caller.
func (app *applicationDependencies) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// rateLimitExceededResponse sends a 429 Too Many Requests error.
func (app *applicationDependencies) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

// unauthorizedResponse sends a 401 for a missing or rejected bearer token.
func (app *applicationDependencies) unauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, "invalid or missing authentication token")
}

// dataErrorResponse maps an error from the data layer onto its status:
// validation and conflict errors are 400, unknown ids 404, history
// mutations 403. Anything else is logged and reported as a 500.
func (app *applicationDependencies) dataErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *data.ValidationError
		conflictErr   *data.ConflictError
		notFoundErr   *data.NotFoundError
		forbiddenErr  *data.ForbiddenError
	)
	switch {
	case errors.As(err, &validationErr):
		app.errorResponse(w, r, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &conflictErr):
		app.errorDetailResponse(w, r, http.StatusBadRequest, conflictErr.Message, conflictErr.Details)
	case errors.As(err, &notFoundErr):
		app.errorResponse(w, r, http.StatusNotFound, notFoundErr.Message)
	case errors.Is(err, data.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.As(err, &forbiddenErr):
		app.errorResponse(w, r, http.StatusForbidden, forbiddenErr.Message)
	default:
		app.serverErrorResponse(w, r, err)
	}
}
