// Package board exposes the dispatch board over HTTP.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	coreboard "github.com/agriexport/dispatchboard/core/board"
	"github.com/agriexport/dispatchboard/core/capacity"
	"github.com/agriexport/dispatchboard/core/deeplink"
	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/dispatch/logging"
	"github.com/agriexport/dispatchboard/core/logger"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/pkg/export"
)

// AttemptLog is the audit query used by GET /api/attempts.
type AttemptLog interface {
	Attempts(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error)
}

type handler struct {
	board *coreboard.Board
	log   AttemptLog
	lg    logger.Logger
}

// NewRouter returns the board API. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty.
func NewRouter(b *coreboard.Board, attempts AttemptLog, token string, lg logger.Logger) *mux.Router {
	h := &handler{board: b, log: attempts, lg: logger.OrNop(lg)}
	r := mux.NewRouter()
	r.Use(bearer(token))

	r.HandleFunc("/api/board", h.view).Methods(http.MethodGet)
	r.HandleFunc("/api/board/highlights", h.highlights).Methods(http.MethodGet)
	r.HandleFunc("/api/board/mode", h.setMode).Methods(http.MethodPut)
	r.HandleFunc("/api/board/units/{id}/toggle", h.toggle).Methods(http.MethodPost)
	r.HandleFunc("/api/board/vehicle", h.selectVehicle).Methods(http.MethodPut)
	r.HandleFunc("/api/board/vehicle", h.clearVehicle).Methods(http.MethodDelete)
	r.HandleFunc("/api/board/discard", h.discard).Methods(http.MethodPost)
	r.HandleFunc("/api/board/dispatch", h.dispatch).Methods(http.MethodPost)
	r.HandleFunc("/api/board/focus", h.setFocus).Methods(http.MethodPut)
	r.HandleFunc("/api/board/focus", h.clearFocus).Methods(http.MethodDelete)
	r.HandleFunc("/api/board/intent", h.intent).Methods(http.MethodPost, http.MethodGet)
	if attempts != nil {
		r.HandleFunc("/api/attempts", h.attempts).Methods(http.MethodGet)
	}
	return r
}

func bearer(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) view(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.board.View())
}

func (h *handler) highlights(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.board.Highlights())
}

func (h *handler) setMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	mode, err := model.ParseMode(body.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.board.SetMode(mode); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, h.board.View())
}

func (h *handler) toggle(w http.ResponseWriter, r *http.Request) {
	changed := h.board.ToggleUnit(mux.Vars(r)["id"])
	h.writeJSON(w, http.StatusOK, changedResponse{Changed: changed, Highlight: h.board.Highlights()})
}

func (h *handler) selectVehicle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VehicleID string `json:"vehicle_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	changed := h.board.SelectVehicle(body.VehicleID)
	h.writeJSON(w, http.StatusOK, changedResponse{Changed: changed, Highlight: h.board.Highlights()})
}

func (h *handler) clearVehicle(w http.ResponseWriter, _ *http.Request) {
	h.board.ClearVehicle()
	h.writeJSON(w, http.StatusOK, h.board.Highlights())
}

func (h *handler) discard(w http.ResponseWriter, _ *http.Request) {
	h.board.Discard()
	h.writeJSON(w, http.StatusOK, h.board.Highlights())
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	a, err := h.board.Dispatch(r.Context())
	switch {
	case errors.Is(err, dispatch.ErrNotDispatchable), errors.Is(err, dispatch.ErrInFlight):
		h.writeJSON(w, http.StatusConflict, rejection{
			Error:      err.Error(),
			Assessment: h.board.Assessment(),
		})
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusAccepted, a.Snapshot())
}

func (h *handler) setFocus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TripID string `json:"trip_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if body.TripID == "" {
		http.Error(w, "trip_id required", http.StatusBadRequest)
		return
	}
	h.board.SetFocus(body.TripID)
	h.writeJSON(w, http.StatusOK, h.board.Focus())
}

func (h *handler) clearFocus(w http.ResponseWriter, _ *http.Request) {
	h.board.ClearFocus()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) intent(w http.ResponseWriter, r *http.Request) {
	in, err := deeplink.ParseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := h.board.ApplyIntent(in)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, intentResponse{
		Intent:    in.String(),
		Outcome:   out,
		Highlight: h.board.Highlights(),
		Focus:     h.board.Focus(),
	})
}

func (h *handler) attempts(w http.ResponseWriter, r *http.Request) {
	q, err := parseLogQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.log.Attempts(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="attempts.csv"`)
		if err := export.WriteCSV(w, records); err != nil {
			h.lg.Errorf("write csv: %v", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, records); err != nil {
		h.lg.Errorf("encode response: %v", err)
	}
}

func parseLogQuery(r *http.Request) (logging.LogQuery, error) {
	v := r.URL.Query()
	q := logging.LogQuery{
		VehicleID: v.Get("vehicle_id"),
		State:     strings.ToLower(v.Get("state")),
		Mode:      strings.ToLower(v.Get("mode")),
	}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, err
		}
	}
	return q, nil
}

type changedResponse struct {
	Changed   bool            `json:"changed"`
	Highlight model.Highlight `json:"highlight"`
}

type rejection struct {
	Error      string              `json:"error"`
	Assessment capacity.Assessment `json:"assessment"`
}

type intentResponse struct {
	Intent    string           `json:"intent"`
	Outcome   deeplink.Outcome `json:"outcome"`
	Highlight model.Highlight  `json:"highlight"`
	Focus     *coreboard.Focus `json:"focus,omitempty"`
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.lg.Errorf("encode response: %v", err)
	}
}
