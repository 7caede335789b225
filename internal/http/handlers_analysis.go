package http

import (
	"net/http"
	"slices"

	"finey/internal/crypto"
	"finey/internal/log"
	"finey/internal/schema"
)

// handleTotalPeriod returns sealed earnings and expenses for the range.
func (s *Server) handleTotalPeriod(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(r.Context(), w)
		return
	}
	ctx := r.Context()

	in, err := parseAnalysisRequest(w, r, s.validator)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rng, totals, err := s.engine.Totals(ctx, in.Accounts, in.Range)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rd := renderer{s: schema.NewSealer(ctx, s.keys, crypto.SecretFinance)}
	payload := rd.totals(totals)
	if err := rd.s.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.analysis(false)
	s.events.LogAnalysisCompleted(ctx, log.OpTotals, len(in.Accounts), rng, false, nil)
	writeData(w, r, http.StatusOK, payload)
}

// handleHomeAnalysis returns the composite home screen analysis. A view that
// failed is rendered as null; the request as a whole still succeeds.
func (s *Server) handleHomeAnalysis(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(r.Context(), w)
		return
	}
	ctx := r.Context()

	in, err := parseAnalysisRequest(w, r, s.validator)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, cached, err := s.analyze(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rd := renderer{s: schema.NewSealer(ctx, s.keys, crypto.SecretFinance)}
	payload := rd.report(rep)
	if err := rd.s.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	failed := make([]string, 0, len(rep.Failures))
	for view := range rep.Failures {
		failed = append(failed, view)
	}
	slices.Sort(failed)

	s.metrics.analysis(cached)
	s.events.LogAnalysisCompleted(ctx, log.OpAnalyze, len(in.Accounts), rep.Range, cached, failed)
	writeData(w, r, http.StatusOK, payload)
}
