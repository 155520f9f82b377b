package http

import (
	"net/http"
)

// handleMonthlySummary serves GET /dashboard/summary?year=&month=.
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}

	summary, err := s.summary.MonthlySummary(r.Context(), params.Year, params.Month)
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}
