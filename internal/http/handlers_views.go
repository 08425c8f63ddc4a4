package http

import (
	"net/http"
)

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := ParseMonthParam(q, s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	filter, err := ParseTypeFilter(q)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	view, err := s.views.Finance(r.Context(), IdentityFrom(r.Context()), period, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, view)
}

func (s *Server) handleGoalsProgress(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	view, err := s.views.Goals(r.Context(), IdentityFrom(r.Context()), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, view)
}

func (s *Server) handleRecapsView(w http.ResponseWriter, r *http.Request) {
	t, err := ParseRecapType(r.URL.Query())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	view, err := s.views.Recaps(r.Context(), IdentityFrom(r.Context()), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, view)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Dashboard(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, view)
}
