package catalog

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/pkg"
)

type catalogService interface {
	List(ctx context.Context) ([]Exercise, error)
}

type Handler struct {
	service catalogService
}

func NewHandler(service catalogService) *Handler {
	return &Handler{service: service}
}

type listItem struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	MuscleGroups []string `json:"muscleGroups"`
}

// HandleList returns the exercise catalog. The optional "lang" query
// parameter selects which translation is used for the names.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.service.List(r.Context())
	if err != nil {
		log.Errorf("list exercise catalog: %s", err)
		http.Error(w, "failed to list exercises", http.StatusInternalServerError)
		return
	}

	lang := r.URL.Query().Get("lang")
	items := make([]listItem, 0, len(exercises))
	for _, ex := range exercises {
		items = append(items, listItem{
			ID:           ex.ID,
			Name:         ex.TranslatedName(lang),
			MuscleGroups: ex.MuscleGroups,
		})
	}

	resp, err := json.Marshal(items)
	if err != nil {
		log.Errorf("marshal exercise catalog: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
