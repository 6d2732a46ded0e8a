package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
	"github.com/mgiraudeau/vocagym/pkg"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type sessionsRepo interface {
	Create(ctx context.Context, userID int, name string, date time.Time, sets []Set) (*Session, error)
	Get(ctx context.Context, userID, sessionID int) (*Session, error)
	List(ctx context.Context, userID, limit, offset int) ([]Session, int, error)
	UpdateMeta(ctx context.Context, userID, sessionID int, params UpdateMetaParams) error
	ReplaceSets(ctx context.Context, userID, sessionID int, sets []Set) ([]Set, error)
	Delete(ctx context.Context, userID, sessionID int) error
}

type Handler struct {
	repo    sessionsRepo
	metrics *metrics.Manager
}

func NewHandler(repo sessionsRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

type setPayload struct {
	ExerciseID int     `json:"exerciseId"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight"`
	Order      int     `json:"order"`
}

func validateSets(payload []setPayload) ([]Set, error) {
	sets := make([]Set, 0, len(payload))
	for i, p := range payload {
		switch {
		case p.ExerciseID <= 0:
			return nil, fmt.Errorf("set %d: invalid exercise id", i)
		case p.Reps < 1:
			return nil, fmt.Errorf("set %d: reps must be at least 1", i)
		case p.Weight < 0:
			return nil, fmt.Errorf("set %d: weight cannot be negative", i)
		case p.Order < 0:
			return nil, fmt.Errorf("set %d: order cannot be negative", i)
		}
		sets = append(sets, Set{
			ExerciseID: p.ExerciseID,
			Reps:       p.Reps,
			Weight:     p.Weight,
			Order:      p.Order,
		})
	}
	return sets, nil
}

type createSessionRequest struct {
	Name string     `json:"name"`
	Date *time.Time `json:"date"`
}

// HandleCreate creates an empty session, named "Workout" and dated now
// unless the request says otherwise.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	name := req.Name
	if name == "" {
		name = DefaultSessionName
	}
	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	session, err := h.repo.Create(r.Context(), userID, name, date, nil)
	if err != nil {
		log.Errorf("create session, user %d: %s", userID, err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, session, http.StatusCreated)
}

type listSessionsResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sessions, total, err := h.repo.List(r.Context(), userID, limit, offset)
	if err != nil {
		log.Errorf("list sessions, user %d: %s", userID, err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}

	h.writeJSON(w, listSessionsResponse{
		Sessions: sessions,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, http.StatusOK)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.userAndSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.repo.Get(r.Context(), userID, sessionID)
	if err != nil {
		h.handleRepoErr(w, err, "get session", userID)
		return
	}

	h.writeJSON(w, session, http.StatusOK)
}

type updateSessionRequest struct {
	Name *string       `json:"name"`
	Date *time.Time    `json:"date"`
	Sets *[]setPayload `json:"sets"`
}

// HandleUpdate changes the session name and/or date and, when the
// request carries a set list, swaps the full set collection for it.
// An empty set list is a valid "no sets remain".
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.userAndSessionID(w, r)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// validate everything before mutating anything
	var newSets []Set
	if req.Sets != nil {
		sets, err := validateSets(*req.Sets)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		newSets = sets
	}

	err := h.repo.UpdateMeta(r.Context(), userID, sessionID, UpdateMetaParams{
		Name: req.Name,
		Date: req.Date,
	})
	if err != nil {
		h.handleRepoErr(w, err, "update session", userID)
		return
	}

	if req.Sets != nil {
		if _, err := h.repo.ReplaceSets(r.Context(), userID, sessionID, newSets); err != nil {
			h.handleRepoErr(w, err, "replace sets", userID)
			return
		}
		h.metrics.CounterSetsReplaced.Inc()
	}

	session, err := h.repo.Get(r.Context(), userID, sessionID)
	if err != nil {
		h.handleRepoErr(w, err, "get updated session", userID)
		return
	}

	h.writeJSON(w, session, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.userAndSessionID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), userID, sessionID); err != nil {
		h.handleRepoErr(w, err, "delete session", userID)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", sessionID))
}

func (h *Handler) userAndSessionID(w http.ResponseWriter, r *http.Request) (userID, sessionID int, ok bool) {
	userID, ok = auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return 0, 0, false
	}

	vars := mux.Vars(r)
	sessionID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return 0, 0, false
	}

	return userID, sessionID, true
}

func (h *Handler) handleRepoErr(w http.ResponseWriter, err error, action string, userID int) {
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if pkg.IsForeignKeyViolationError(err) {
		http.Error(w, "unknown exercise id", http.StatusBadRequest)
		return
	}
	log.Errorf("%s, user %d: %s", action, userID, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageLimit, 0

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err = strconv.Atoi(limitParam)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if offsetParam := r.URL.Query().Get("offset"); offsetParam != "" {
		offset, err = strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}

	return limit, offset, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any, statusCode int) {
	resp, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, statusCode)
}
