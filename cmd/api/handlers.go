// cmd/api/handlers.go
// This file contains the HTTP request handlers for the two book catalogs.
// Each handler factory takes the catalog scope and returns the handler, so
// /api/member-books and /api/staff-books share one implementation.
package main

import (
	"net/http"

	"github.com/aoideee/school-library/internal/data"
)

// bookSortSafeList is the set of ?sort= values the book lists accept.
var bookSortSafeList = []string{"id", "title", "author", "bookNumber", "subject", "-id", "-title", "-author", "-bookNumber", "-subject"}

// listBooksHandler handles GET /api/{scope}-books.
// It returns every copy in the catalog as a JSON array; borrowed copies
// carry daysOutstanding.
func (app *applicationDependencies) listBooksHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := data.Filters{
			Sort:         app.readString(r.URL.Query(), "sort", "id"),
			SortSafeList: bookSortSafeList,
		}

		books, err := app.models.Catalog.List(r.Context(), scope, filters)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		app.models.Query.WithDaysOutstanding(books...)

		err = app.writeJSON(w, http.StatusOK, books, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// createBookHandler handles POST /api/{scope}-books.
// It reads the new copy's details, inserts it, and echoes the stored copy
// including its assigned id.
func (app *applicationDependencies) createBookHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input data.CreateBookInput

		// readJSON enforces a 1MB limit, rejects unknown fields, and ensures a single value.
		err := app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		book := &data.BookCopy{
			Title:      input.Title,
			Author:     input.Author,
			BookNumber: input.BookNumber,
			Subject:    input.Subject,
		}

		// Insert() validates, checks the book number is free, and writes the id back.
		err = app.models.Catalog.Insert(r.Context(), scope, book)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, book, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// showBookHandler handles GET /api/{scope}-books/:id.
func (app *applicationDependencies) showBookHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		book, err := app.models.Catalog.Get(r.Context(), scope, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}
		app.models.Query.WithDaysOutstanding(book)

		err = app.writeJSON(w, http.StatusOK, book, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// updateBookHandler handles PUT and PATCH /api/{scope}-books/:id.
// Only the fields present in the body are changed; the borrow state of the
// copy is never touched here.
func (app *applicationDependencies) updateBookHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		var input data.UpdateBookInput
		err = app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		book, err := app.models.Catalog.Update(r.Context(), scope, id, input)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}
		app.models.Query.WithDaysOutstanding(book)

		err = app.writeJSON(w, http.StatusOK, book, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// deleteBookHandler handles DELETE /api/{scope}-books/:id.
// A borrowed copy cannot be deleted; history entries for the copy survive.
func (app *applicationDependencies) deleteBookHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		err = app.models.Catalog.Delete(r.Context(), scope, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{
			"success": true,
			"message": "Book deleted successfully. Borrowing history is preserved for future reference.",
		}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// showHolderHandler handles GET /api/{scope}-books/:id/holder.
// holder is null while the copy is available.
func (app *applicationDependencies) showHolderHandler(scope data.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		holding, err := app.models.Query.Holder(r.Context(), scope, id)
		if err != nil {
			app.dataErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, holding, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// listSubjectsHandler handles GET /api/subjects/:scope.
// It groups the scope's catalog by subject.
func (app *applicationDependencies) listSubjectsHandler(w http.ResponseWriter, r *http.Request) {
	scope, err := app.readScopeParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	groups, err := app.models.Query.BySubject(r.Context(), scope)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	for _, books := range groups {
		app.models.Query.WithDaysOutstanding(books...)
	}

	err = app.writeJSON(w, http.StatusOK, envelope{
		"subjects": data.Subjects(groups),
		"books":    groups,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
