// cmd/api/handlers_borrowers.go
// This file contains the handlers for the member and staff directories.
package main

import (
	"net/http"

	"github.com/aoideee/school-library/internal/data"
)

// Each directory only sorts on its own identifier column.
var (
	memberSortSafeList = []string{"id", "name", "admId", "-id", "-name", "-admId"}
	staffSortSafeList  = []string{"id", "name", "tscNumber", "-id", "-name", "-tscNumber"}
)

func borrowerSortSafeList(kind data.Scope) []string {
	if kind == data.ScopeStaff {
		return staffSortSafeList
	}
	return memberSortSafeList
}

// deletedMessage is the success message for a removed member or staff record.
func deletedMessage(kind data.Scope) string {
	if kind == data.ScopeStaff {
		return "Staff deleted successfully. Borrowing history is preserved for future reference."
	}
	return "Member deleted successfully. Borrowing history is preserved for future reference."
}

// listBorrowersHandler handles GET /api/members and GET /api/staff.
func (app *applicationDependencies) listBorrowersHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := data.Filters{
			Sort:         app.readString(r.URL.Query(), "sort", "id"),
			SortSafeList: borrowerSortSafeList(kind),
		}

		borrowers, err := app.models.Directory.List(r.Context(), kind, filters)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, borrowers, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// createBorrowerHandler handles POST /api/members and POST /api/staff.
func (app *applicationDependencies) createBorrowerHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input data.BorrowerInput
		err := app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		borrower := input.Borrower(kind)
		err = app.models.Directory.Insert(r.Context(), borrower)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, borrower, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

func (app *applicationDependencies) showBorrowerHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		borrower, err := app.models.Directory.Get(r.Context(), kind, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, borrower, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// updateBorrowerHandler handles PUT /api/members/:id and PUT /api/staff/:id.
// The body replaces both the name and the identifier.
func (app *applicationDependencies) updateBorrowerHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		var input data.BorrowerInput
		err = app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		borrower := input.Borrower(kind)
		borrower.ID = id
		err = app.models.Directory.Update(r.Context(), borrower)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, borrower, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// deleteBorrowerHandler handles DELETE /api/members/:id and DELETE /api/staff/:id.
// A borrower still holding copies cannot be removed.
func (app *applicationDependencies) deleteBorrowerHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		err = app.models.Directory.Delete(r.Context(), kind, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": deletedMessage(kind)}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// listHeldBooksHandler handles GET /api/members/:id/books and GET /api/staff/:id/books.
func (app *applicationDependencies) listHeldBooksHandler(kind data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		books, err := app.models.Query.HeldBy(r.Context(), kind, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, books, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}
