package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/types"
)

// CardResolver resolves a printed QR token into the public pet card.
type CardResolver interface {
	GetCardByQRToken(ctx context.Context, token string) (*types.PublicPetCard, error)
}

// PublicHandler serves the pet card reached by scanning a printed QR tag.
// Only active pets resolve; everything else is a plain 404 so tokens cannot
// be probed for pet state.
type PublicHandler struct {
	cards  CardResolver
	logger *slog.Logger
}

// NewPublicHandler creates a new PublicHandler with the provided
// dependencies.
func NewPublicHandler(cards CardResolver, logger *slog.Logger) *PublicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicHandler{cards: cards, logger: logger}
}

// RegisterRoutes mounts the public card endpoint on the root router.
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/p", h.HandleCard)
}

// HandleCard handles GET /p?t={qr_token}.
func (h *PublicHandler) HandleCard(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("t")
	if token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"t query parameter is required",
			nil,
		))
		return
	}

	card, err := h.cards.GetCardByQRToken(r.Context(), token)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: card})
}
