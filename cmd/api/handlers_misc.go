// cmd/api/handlers_misc.go
// This file contains the healthcheck, school and statistics handlers.
package main

import (
	"net/http"

	"github.com/aoideee/school-library/internal/metrics"
)

// healthcheckHandler handles GET /api/healthcheck.
func (app *applicationDependencies) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	env := envelope{
		"status": "available",
		"system_info": map[string]string{
			"environment": app.config.environment,
			"version":     appVersion,
			"school":      app.config.school.Code,
		},
	}

	err := app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showSchoolHandler handles GET /api/school.
func (app *applicationDependencies) showSchoolHandler(w http.ResponseWriter, r *http.Request) {
	err := app.writeJSON(w, http.StatusOK, app.config.school, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showStatsHandler handles GET /api/stats: totals over the history log
// and the mean days a returned copy was out.
func (app *applicationDependencies) showStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.models.History.Stats(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	metrics.SetActiveBorrows(stats.ActiveBorrows)

	err = app.writeJSON(w, http.StatusOK, stats, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
