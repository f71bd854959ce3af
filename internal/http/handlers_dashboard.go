package http

import (
	"net/http"

	"finansheet/internal/log"
)

// handleGrid returns the calendar for ?from=YYYY-MM&months=N.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	params, err := ParseGridParams(r, s.dashboard.Now(), s.gridMonths)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	g, err := s.dashboard.Grid(r.Context(), params.From, params.Months)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(NewGridView(g)).Write(w)
}

// handleSummary returns the totals and status counts of ?period=YYYY-MM.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r, s.dashboard.Now())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	sum, err := s.dashboard.Summary(r.Context(), period)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(NewSummaryView(sum)).Write(w)
}

// handleListCommitments returns every commitment in priority order.
func (s *Server) handleListCommitments(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.dashboard.Commitments(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	out := make([]RankedView, 0, len(ranked))
	for _, rc := range ranked {
		out = append(out, NewRankedView(rc))
	}
	NewJSONResponse().Body(out).Write(w)
}
