package main

import (
	"net/http"
	"strings"

	"github.com/farxc/ensu_insecurity/internal/ensu/text"
	"github.com/farxc/ensu_insecurity/internal/response"
	"github.com/farxc/ensu_insecurity/internal/store"
	"github.com/go-chi/chi/v5"
)

type GetAggregatesResponse = response.APIResponse[[]store.MunicipalityAggregate]
type GetPeriodsResponse = response.APIResponse[[]store.PeriodSummary]

// @Summary		Get municipality aggregates
// @Description	Consolidated perceived-insecurity aggregates, optionally narrowed by period and municipality.
// @Tags			Aggregates
// @Produce		json
// @Param			year			query		int						false	"Survey year"
// @Param			quarter			query		int						false	"Survey quarter (1-4)"
// @Param			municipality	query		string					false	"Municipality name, accents and case ignored"
// @Success		200				{object}	GetAggregatesResponse	"Successfully retrieved aggregates"
// @Failure		400				{object}	response.ErrorResponse	"Invalid filter"
// @Failure		500				{object}	response.ErrorResponse	"Failed to get aggregates"
// @Router			/aggregates [get]
func (app *application) handleGetAggregates(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil || year < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid year")
		return
	}
	quarter, err := queryInt(r, "quarter", 0)
	if err != nil || quarter < 0 || quarter > 4 {
		writeJSONError(w, http.StatusBadRequest, "quarter must be between 1 and 4")
		return
	}

	filter := store.AggregateFilter{
		Year:         year,
		Quarter:      quarter,
		Municipality: text.Normalize(r.URL.Query().Get("municipality")),
	}

	data, err := app.store.Aggregates.GetAggregates(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get aggregates: "+err.Error())
		return
	}

	response := &GetAggregatesResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved aggregates",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		List loaded periods
// @Description	Periods present in the store with their municipality and response counts.
// @Tags			Aggregates
// @Produce		json
// @Success		200	{object}	GetPeriodsResponse		"Successfully retrieved periods"
// @Failure		500	{object}	response.ErrorResponse	"Failed to get periods"
// @Router			/periods [get]
func (app *application) handleGetPeriods(w http.ResponseWriter, r *http.Request) {
	data, err := app.store.Aggregates.GetPeriods(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get periods: "+err.Error())
		return
	}

	response := &GetPeriodsResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved periods",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get municipality series
// @Description	Chronological aggregates for one municipality.
// @Tags			Aggregates
// @Produce		json
// @Param			name	path		string					true	"Municipality name"
// @Success		200		{object}	GetAggregatesResponse	"Successfully retrieved series"
// @Failure		404		{object}	response.ErrorResponse	"Municipality not found"
// @Failure		500		{object}	response.ErrorResponse	"Failed to get series"
// @Router			/municipalities/{name}/series [get]
func (app *application) handleGetMunicipalitySeries(w http.ResponseWriter, r *http.Request) {
	name := text.Normalize(chi.URLParam(r, "name"))
	if strings.TrimSpace(name) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing municipality name")
		return
	}

	data, err := app.store.Aggregates.GetMunicipalitySeries(r.Context(), name)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get series: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeJSONError(w, http.StatusNotFound, "no aggregates for municipality "+name)
		return
	}

	response := &GetAggregatesResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved series",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
