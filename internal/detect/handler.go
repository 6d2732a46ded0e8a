package detect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
	"github.com/mgiraudeau/vocagym/pkg"
)

type detector interface {
	DetectExercise(ctx context.Context, text string) (*Detection, error)
}

type Handler struct {
	detector detector
	metrics  *metrics.Manager
}

func NewHandler(d detector, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		detector: d,
		metrics:  metricsManager,
	}
}

type detectRequest struct {
	Text string `json:"text"`
}

// HandleDetect runs a voice transcript through exercise detection.
func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	detection, err := h.detector.DetectExercise(r.Context(), req.Text)
	switch {
	case errors.Is(err, ErrNoExerciseDetected):
		h.metrics.CounterExerciseDetections.WithLabelValues("no_match").Inc()
		http.Error(w, "no exercise detected", http.StatusNotFound)
		return
	case err != nil:
		h.metrics.CounterExerciseDetections.WithLabelValues("error").Inc()
		log.Errorf("detect exercise: %s", err)
		http.Error(w, "exercise detection failed", http.StatusInternalServerError)
		return
	}

	h.metrics.CounterExerciseDetections.WithLabelValues("detected").Inc()

	resp, err := json.Marshal(detection)
	if err != nil {
		log.Errorf("marshal detection: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
