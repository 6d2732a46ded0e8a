package wall

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/pkg"
)

type wallBuilder interface {
	Build(ctx context.Context, username string) (*Wall, error)
}

type Handler struct {
	builder wallBuilder
}

func NewHandler(builder wallBuilder) *Handler {
	return &Handler{builder: builder}
}

// HandleGet serves the public wall of a user, no auth required.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	userWall, err := h.builder.Build(r.Context(), username)
	if err != nil {
		if errors.Is(err, ErrWallNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("build wall for %s: %s", username, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(userWall)
	if err != nil {
		log.Errorf("marshal wall: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
