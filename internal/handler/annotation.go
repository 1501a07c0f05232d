package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"score-annotator/internal/annotation"
)

// AnnotationHandler REST access to persisted annotations
type AnnotationHandler struct {
	store *annotation.Store
	log   *zap.Logger
}

func NewAnnotationHandler(store *annotation.Store, log *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{store: store, log: log}
}

// ListBySong GET /api/songs/:songId/annotations
// Finalized strokes of a song; in-flight strokes are not included.
func (h *AnnotationHandler) ListBySong(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "songId is required"})
	}

	annotations, err := h.store.ListBySong(c.UserContext(), songID)
	if err != nil {
		h.log.Error("list annotations failed", zap.String("song", songID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch annotations"})
	}

	return c.JSON(fiber.Map{
		"songId":      songID,
		"annotations": annotations,
		"total":       len(annotations),
	})
}
