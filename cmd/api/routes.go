// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/aoideee/school-library/internal/data"
	"github.com/aoideee/school-library/internal/metrics"
	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// routes registers all HTTP endpoints and returns the configured router
// wrapped in the middleware chain.
//
// Middleware chain (outermost → innermost):
//
//	recoverPanic → requestID → logRequest → metrics → secureHeaders → enableCORS → rateLimit → otelhttp → router
//
// Write endpoints are additionally wrapped in requireAuth. The member and
// staff halves of the library are registered from the same handlers with
// the scope bound in.
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	// Override the default httprouter error handlers to return JSON responses.
	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	// handle registers h and records pattern as the request's metrics label.
	handle := func(method, pattern string, h http.HandlerFunc) {
		router.HandlerFunc(method, pattern, metrics.WithRoute(pattern, h))
	}

	handle(http.MethodGet, "/api/healthcheck", app.healthcheckHandler)
	handle(http.MethodGet, "/api/school", app.showSchoolHandler)
	handle(http.MethodGet, "/api/stats", app.showStatsHandler)
	handle(http.MethodGet, "/metrics", metrics.Handler().ServeHTTP)

	// Catalogs
	for _, scope := range []data.Scope{data.ScopeMember, data.ScopeStaff} {
		base := "/api/" + string(scope) + "-books"
		handle(http.MethodGet, base, app.listBooksHandler(scope))
		handle(http.MethodPost, base, app.requireAuth(app.createBookHandler(scope)))
		handle(http.MethodGet, base+"/:id", app.showBookHandler(scope))
		handle(http.MethodPut, base+"/:id", app.requireAuth(app.updateBookHandler(scope)))
		handle(http.MethodPatch, base+"/:id", app.requireAuth(app.updateBookHandler(scope)))
		handle(http.MethodDelete, base+"/:id", app.requireAuth(app.deleteBookHandler(scope)))
		handle(http.MethodGet, base+"/:id/holder", app.showHolderHandler(scope))
	}

	// Directories
	for scope, base := range map[data.Scope]string{data.ScopeMember: "/api/members", data.ScopeStaff: "/api/staff"} {
		handle(http.MethodGet, base, app.listBorrowersHandler(scope))
		handle(http.MethodPost, base, app.requireAuth(app.createBorrowerHandler(scope)))
		handle(http.MethodGet, base+"/:id", app.showBorrowerHandler(scope))
		handle(http.MethodPut, base+"/:id", app.requireAuth(app.updateBorrowerHandler(scope)))
		handle(http.MethodDelete, base+"/:id", app.requireAuth(app.deleteBorrowerHandler(scope)))
		handle(http.MethodGet, base+"/:id/books", app.listHeldBooksHandler(scope))
	}

	handle(http.MethodGet, "/api/subjects/:scope", app.listSubjectsHandler)

	// Ledger
	handle(http.MethodPost, "/api/borrow", app.requireAuth(app.borrowHandler))
	handle(http.MethodPost, "/api/return", app.requireAuth(app.returnHandler))

	// History is read-only. Every mutation is refused before its body is read.
	handle(http.MethodGet, "/api/history", app.listHistoryHandler)
	handle(http.MethodGet, "/api/history/:id", app.showHistoryHandler)
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		handle(method, "/api/history", app.rejectHistoryMutationHandler)
		handle(method, "/api/history/*rest", app.rejectHistoryMutationHandler)
	}

	traced := otelhttp.NewHandler(router, "school-library")

	// recoverPanic is outermost so it catches panics from every layer below.
	return app.recoverPanic(
		app.requestID(
			app.logRequest(
				metrics.HTTPMetricsMiddleware(
					app.secureHeaders(
						app.enableCORS(
							app.rateLimit(traced)))))))
}
