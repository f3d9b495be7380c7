// cmd/api/handlers_history.go
// This file contains the read-only history handlers and the handler that
// refuses every attempt to change the log.
package main

import (
	"errors"
	"net/http"

	"github.com/aoideee/school-library/internal/data"
)

// listHistoryHandler handles GET /api/history.
// Optional filters: ?userType=member|staff&userId=&bookId=&status=open|returned.
// Entries come most recent borrow first.
func (app *applicationDependencies) listHistoryHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	var (
		filter data.HistoryFilter
		err    error
	)
	if s := qs.Get("userType"); s != "" {
		scope, ok := data.ParseScope(s)
		if !ok {
			app.badRequestResponse(w, r, errors.New("userType must be member or staff"))
			return
		}
		filter.UserType = scope
	}
	if filter.UserID, err = app.readInt64(qs, "userId", 0); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if filter.BookID, err = app.readInt64(qs, "bookId", 0); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	switch filter.Status = app.readString(qs, "status", ""); filter.Status {
	case "", "open", "returned":
	default:
		app.badRequestResponse(w, r, errors.New("status must be open or returned"))
		return
	}

	entries, err := app.models.History.List(r.Context(), filter)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, entries, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showHistoryHandler handles GET /api/history/:id.
func (app *applicationDependencies) showHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	entry, err := app.models.History.Get(r.Context(), id)
	if err != nil {
		app.dataErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, entry, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// rejectHistoryMutationHandler answers every POST, PUT, PATCH or DELETE
// under /api/history with 403. The request body is never read.
func (app *applicationDependencies) rejectHistoryMutationHandler(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.Method {
	case http.MethodPost:
		err = data.ErrHistoryCreate
	case http.MethodDelete:
		err = data.ErrHistoryDelete
	default:
		err = data.ErrHistoryModify
	}
	app.logger.Warn("history mutation refused",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
	)
	app.dataErrorResponse(w, r, err)
}
