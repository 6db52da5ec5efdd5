package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mythweaver/api/internal/models"
	"mythweaver/api/internal/repository"
)

type generateRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	Count          *int   `json:"count" binding:"omitempty,min=0,max=10"`
	NegativePrompt string `json:"negativePrompt"`
	StylePreset    string `json:"stylePreset"`
	SessionID      *int64 `json:"sessionId"`
	ConjurationID  *int64 `json:"conjurationId"`
	CharacterID    *int64 `json:"characterId"`
}

type listResponse struct {
	Data    []models.GeneratedImage `json:"data"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"perPage"`
}

// GenerateImages queues a request; progress arrives on the notification socket.
func (h HandlerSet) GenerateImages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}

	count := 1
	if body.Count != nil {
		count = *body.Count
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), models.ImageRequest{
		UserID:         userID,
		Prompt:         body.Prompt,
		Count:          count,
		NegativePrompt: body.NegativePrompt,
		StylePreset:    body.StylePreset,
		Linking: models.Linking{
			SessionID:     body.SessionID,
			ConjurationID: body.ConjurationID,
			CharacterID:   body.CharacterID,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("enqueue generation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
}

func (h HandlerSet) ListImages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page, perPage := 1, 20
	if v, err := strconv.Atoi(c.Query("perPage")); err == nil && v > 0 && v <= 100 {
		perPage = v
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 1 {
		page = v
	}
	offset := (page - 1) * perPage

	linking, err := linkingFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter", "detail": err.Error()})
		return
	}

	var images []models.GeneratedImage
	if linking == (models.Linking{}) {
		images, err = h.images.ListByUser(c.Request.Context(), userID, perPage, offset)
	} else {
		images, err = h.images.ListByLinking(c.Request.Context(), userID, linking, perPage, offset)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if images == nil {
		images = []models.GeneratedImage{}
	}

	c.JSON(http.StatusOK, listResponse{Data: images, Page: page, PerPage: perPage})
}

func linkingFilter(c *gin.Context) (models.Linking, error) {
	var linking models.Linking
	targets := map[string]**int64{
		"sessionId":     &linking.SessionID,
		"conjurationId": &linking.ConjurationID,
		"characterId":   &linking.CharacterID,
	}
	for key, target := range targets {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return models.Linking{}, errors.New(key + " must be a positive integer")
		}
		*target = &id
	}
	return linking, nil
}

func (h HandlerSet) GetImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	image, err := h.images.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrImageNotFound) || (err == nil && image.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("image_id", id).Msg("get image failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, image)
}
