package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/export"
	"github.com/bher20/utilitybill/internal/history"
	"github.com/bher20/utilitybill/internal/metrics"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/timeline"
)

type calculateResponse struct {
	Readings billing.Readings `json:"readings"`
	Result   billing.Result   `json:"result"`
	Lines    []string         `json:"lines"`
}

type summaryResponse struct {
	timeline.Summary
	Last      int     `json:"last"`
	LastTotal float64 `json:"last_total"`
	Line      string  `json:"line"`
}

type historyResponse struct {
	Records []storage.PeriodRecord `json:"records"`
	Summary timeline.Summary       `json:"summary"`
	Line    string                 `json:"line"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeForm reads a flat JSON object whose values are strings or numbers,
// as typed by the user. Null values are treated as absent.
func decodeForm(r *http.Request) (map[string]string, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	form := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			form[k] = val
		case json.Number:
			form[k] = val.String()
		default:
			return nil, fmt.Errorf("field %q must be a string or a number", k)
		}
	}
	return form, nil
}

// validationReason labels a rejected input for metrics.
func validationReason(err error) string {
	switch {
	case errors.Is(err, billing.ErrMissingReading):
		return "missing"
	case errors.Is(err, billing.ErrNotANumber):
		return "not_a_number"
	case errors.Is(err, billing.ErrNegativeReading):
		return "negative"
	case errors.Is(err, billing.ErrReadingDecreased):
		return "decreased"
	case errors.Is(err, billing.ErrInvalidTariff):
		return "tariff"
	case errors.Is(err, history.ErrEmptyLabel):
		return "empty_label"
	}
	return "other"
}

func (h *handlers) rejectInput(w http.ResponseWriter, err error) {
	metrics.ValidationErrorsTotal.WithLabelValues(validationReason(err)).Inc()
	writeError(w, http.StatusUnprocessableEntity, err)
}

// compute parses and validates readings from form and computes the bill
// with the current tariffs. It writes the error response itself.
func (h *handlers) compute(w http.ResponseWriter, r *http.Request, form map[string]string) (billing.Readings, billing.Result, bool) {
	readings, err := billing.ParseReadings(form)
	if err != nil {
		h.rejectInput(w, err)
		return billing.Readings{}, billing.Result{}, false
	}
	if err := readings.Validate(); err != nil {
		h.rejectInput(w, err)
		return billing.Readings{}, billing.Result{}, false
	}
	res := billing.Compute(readings, h.Tariffs.Load(r.Context()))
	metrics.CalculationsTotal.Inc()
	return readings, res, true
}

func (h *handlers) calculate(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	readings, res, ok := h.compute(w, r, form)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{Readings: readings, Result: res, Lines: res.Lines()})
}

// commitHistory recomputes the bill from the submitted readings and saves
// it. A missing "period" field gets the current month's label.
func (h *handlers) commitHistory(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	label, ok := form["period"]
	if !ok {
		label = history.DefaultPeriodLabel(h.Now())
	}
	delete(form, "period")

	readings, res, ok := h.compute(w, r, form)
	if !ok {
		return
	}
	rec, err := h.History.Commit(r.Context(), label, readings, res)
	if errors.Is(err, history.ErrEmptyLabel) {
		h.rejectInput(w, err)
		return
	}
	if err != nil {
		h.Log.Error("commit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// listHistory returns the records in timeline order, or newest first with
// ?order=newest.
func (h *handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	var (
		recs []storage.PeriodRecord
		err  error
	)
	switch r.URL.Query().Get("order") {
	case "", "timeline":
		recs, err = h.History.Load(r.Context())
	case "newest":
		recs, err = h.History.Table(r.Context())
	default:
		writeError(w, http.StatusBadRequest, errors.New("order must be timeline or newest"))
		return
	}
	if err != nil {
		h.Log.Error("load history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []storage.PeriodRecord{}
	}
	sum := timeline.Summarize(recs)
	writeJSON(w, http.StatusOK, historyResponse{Records: recs, Summary: sum, Line: sum.Line()})
}

func (h *handlers) deleteHistoryByKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := storage.PeriodKey{Period: q.Get("period"), DateSaved: q.Get("date_saved")}
	if key.Period == "" || key.DateSaved == "" {
		writeError(w, http.StatusBadRequest, errors.New("period and date_saved are required"))
		return
	}
	n, err := h.History.Delete(r.Context(), key)
	if err != nil {
		h.Log.Error("delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *handlers) deleteHistoryByID(w http.ResponseWriter, r *http.Request) {
	err := h.History.DeleteByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.Log.Error("delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) historySummary(w http.ResponseWriter, r *http.Request) {
	last := timeline.RecentWindow
	if raw := r.URL.Query().Get("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("last must be a positive integer"))
			return
		}
		last = n
	}
	recs, err := h.History.Load(r.Context())
	if err != nil {
		h.Log.Error("load history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sum := timeline.Summarize(recs)
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:   sum,
		Last:      last,
		LastTotal: timeline.LastNTotal(recs, last),
		Line:      sum.Line(),
	})
}

func (h *handlers) prefill(w http.ResponseWriter, r *http.Request) {
	var (
		prev billing.MeterValues
		err  error
	)
	if id := r.URL.Query().Get("id"); id != "" {
		prev, err = h.History.PrefillFrom(r.Context(), id)
	} else {
		prev, err = h.History.Prefill(r.Context())
	}
	switch {
	case errors.Is(err, history.ErrEmptyHistory), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, history.ErrNoReadings):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		h.Log.Error("prefill failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

func (h *handlers) exportHistory(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := h.History.Load(r.Context())
		if err != nil {
			h.Log.Error("load history failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		now := h.Now()
		data, err := export.Build(format, recs, now, export.Options{FontPath: h.ExportFont})
		if errors.Is(err, export.ErrNotRepresentable) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if err != nil {
			h.Log.Error("export failed", zap.String("format", format), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", export.ContentType(format))
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=history-%s.%s", now.Format("20060102"), format))
		_, _ = w.Write(data)
	}
}

func (h *handlers) getTariffs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Tariffs.Load(r.Context()))
}

// putTariffs replaces the tariff set. Keys left out or sent empty take
// their default value.
func (h *handlers) putTariffs(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := h.Tariffs.Update(r.Context(), form)
	if errors.Is(err, billing.ErrInvalidTariff) {
		h.rejectInput(w, err)
		return
	}
	if err != nil {
		h.Log.Error("save tariffs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
