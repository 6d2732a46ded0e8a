package performance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/pkg"
)

type analyzer interface {
	Overview(ctx context.Context, userID int) (*Overview, error)
	ExerciseDetail(ctx context.Context, userID, exerciseID int) (*ExerciseDetail, error)
}

type Handler struct {
	analyzer analyzer
}

func NewHandler(a analyzer) *Handler {
	return &Handler{analyzer: a}
}

// HandleGet returns the performance data of the logged in user: the
// all-exercises overview, or a single exercise with full personal
// records when the exerciseId query parameter is set.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var payload any
	if exerciseIDParam := r.URL.Query().Get("exerciseId"); exerciseIDParam != "" {
		exerciseID, err := strconv.Atoi(exerciseIDParam)
		if err != nil || exerciseID < 1 {
			http.Error(w, "invalid exercise id", http.StatusBadRequest)
			return
		}
		detail, err := h.analyzer.ExerciseDetail(r.Context(), userID, exerciseID)
		if err != nil {
			log.Errorf("performance detail, user %d, exercise %d: %s", userID, exerciseID, err)
			http.Error(w, "failed to build performance data", http.StatusInternalServerError)
			return
		}
		payload = detail
	} else {
		overview, err := h.analyzer.Overview(r.Context(), userID)
		if err != nil {
			log.Errorf("performance overview, user %d: %s", userID, err)
			http.Error(w, "failed to build performance data", http.StatusInternalServerError)
			return
		}
		payload = overview
	}

	resp, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal performance data: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
