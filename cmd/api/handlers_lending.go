// cmd/api/handlers_lending.go
// This file contains the borrow and return handlers that drive the ledger.
package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aoideee/school-library/internal/data"
	"github.com/aoideee/school-library/internal/metrics"
)

// ledgerResult labels a ledger outcome for the transitions counter.
func ledgerResult(err error) string {
	var (
		validationErr *data.ValidationError
		conflictErr   *data.ConflictError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.Is(err, data.ErrRecordNotFound):
		return "not_found"
	}
	return "error"
}

// actor names the authenticated caller for the audit log line.
func actor(r *http.Request) slog.Attr {
	if claims := claimsFrom(r.Context()); claims != nil {
		return slog.Group("actor", "user", claims.UserID, "role", claims.Role)
	}
	return slog.String("actor", "anonymous")
}

// scopeLabel is the metrics label for a requested userType: the catalog it
// selects, or "invalid".
func scopeLabel(userType string) string {
	if scope, ok := data.ParseScope(data.UserTypeOrDefault(userType)); ok {
		return string(scope)
	}
	return "invalid"
}

// borrowHandler handles POST /api/borrow with {bookId, userType, userId, name}.
// The copy is looked up in the catalog matching userType, member when omitted.
func (app *applicationDependencies) borrowHandler(w http.ResponseWriter, r *http.Request) {
	var input data.BorrowInput
	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	entry, err := app.models.Ledger.Borrow(r.Context(), input)
	metrics.ObserveLedger("borrow", scopeLabel(input.UserType), ledgerResult(err))
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	app.logger.Info("book borrowed",
		slog.String("user_type", string(entry.UserType)),
		slog.Int64("user_id", entry.UserID),
		slog.Int64("book_id", entry.BookID),
		slog.Int64("history_id", entry.ID),
		actor(r),
	)

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "entry": entry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// returnInput accepts both request shapes of POST /api/return.
type returnInput struct {
	BookID   int64   `json:"bookId"`
	BookIDs  []int64 `json:"bookIds"`
	UserType string  `json:"userType"`
}

// returnHandler handles POST /api/return.
//
// {bookId, userType?} returns one copy and reports any failure. The batch
// form {bookIds, userType?} returns each copy independently, logs the ones
// that could not be returned and always reports success. Both forms default
// userType to member.
func (app *applicationDependencies) returnHandler(w http.ResponseWriter, r *http.Request) {
	var input returnInput
	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.BookIDs != nil {
		app.returnBatch(w, r, input)
		return
	}

	entry, err := app.models.Ledger.Return(r.Context(), data.ReturnInput{BookID: input.BookID, UserType: input.UserType})
	metrics.ObserveLedger("return", scopeLabel(input.UserType), ledgerResult(err))
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	attrs := []any{
		slog.String("user_type", data.UserTypeOrDefault(input.UserType)),
		slog.Int64("book_id", input.BookID),
		actor(r),
	}
	if entry != nil {
		attrs = append(attrs, slog.Int64("history_id", entry.ID))
	}
	app.logger.Info("book returned", attrs...)

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *applicationDependencies) returnBatch(w http.ResponseWriter, r *http.Request, input returnInput) {
	scope, ok := data.ParseScope(data.UserTypeOrDefault(input.UserType))
	if !ok {
		app.dataErrorResponse(w, r, &data.ValidationError{Field: "userType", Message: "userType must be one of: member staff"})
		return
	}

	result := app.models.Ledger.ReturnBatch(r.Context(), scope, input.BookIDs)
	for _, id := range result.Returned {
		metrics.ObserveLedger("return", string(scope), "ok")
		app.logger.Info("book returned", slog.String("user_type", string(scope)), slog.Int64("book_id", id), actor(r))
	}
	for id, failure := range result.Failed {
		metrics.ObserveLedger("return", string(scope), ledgerResult(failure))
		app.logger.Warn("batch return skipped book",
			slog.String("user_type", string(scope)),
			slog.Int64("book_id", id),
			slog.String("reason", failure.Error()),
			slog.String("request_id", requestIDFrom(r.Context())),
		)
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"message": "Books returned successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
