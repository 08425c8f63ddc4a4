package http

import (
	"net/http"
	"strconv"

	"yeardash/internal/aggregate"
	"yeardash/internal/export"
	"yeardash/internal/log"
)

// handleExportXLSX downloads the finance month as a workbook. The ?type=
// filter applies to the transaction sheet only; totals cover the month.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
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
	data, err := export.MonthXLSX(view, s.loc)
	s.metrics.Export("xlsx", err)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Workbook export failed",
			log.FieldOperation, log.OpExport, log.FieldMonth, view.Period, log.FieldError, err)
		InternalServerError("could not build workbook").Write(w)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(view)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleExportSheets appends the month's transactions to the configured
// spreadsheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheets == nil {
		NotFoundError("spreadsheet export is not configured").Write(w)
		return
	}
	period, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	txs, err := s.views.Transactions(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month := aggregate.MonthTransactions(txs, period, aggregate.FilterAll)

	ref, err := s.deps.Sheets.AppendTransactions(r.Context(), period, month)
	s.metrics.Export("sheets", err)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Spreadsheet export failed",
			log.FieldOperation, log.OpAppend, log.FieldMonth, period.String(), log.FieldError, err)
		BadGatewayError(err.Error()).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Exported month to spreadsheet",
		log.FieldMonth, period.String(), log.FieldSheetsRef, ref)
	OK(w, map[string]any{"ref": ref, "rows": len(month)})
}
