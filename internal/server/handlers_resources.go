package server

import (
	"net/http"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListBiolinks(c *gin.Context) {
	stored, err := h.store.ListBiolinks(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	payload := make([]biolinkPayload, 0, len(stored))
	for _, biolink := range stored {
		payload = append(payload, presentBiolink(biolink))
	}
	c.JSON(http.StatusOK, gin.H{"biolinks": payload})
}

func (h *httpHandler) handleCreateBiolink(c *gin.Context) {
	var request createBiolinkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	created, err := h.store.CreateBiolink(c.Request.Context(), actorFrom(c), biolinks.CreateBiolinkInput{
		Username: request.Username,
		Title:    request.Title,
		Bio:      request.Bio,
	})
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentBiolink(created))
}

func (h *httpHandler) handleGetBiolink(c *gin.Context) {
	detail, err := h.store.GetBiolink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, biolinkDetailPayload{
		biolinkPayload: presentBiolink(detail.Biolink),
		Links:          presentLinks(detail.Links),
	})
}

func (h *httpHandler) handleUpdateBiolink(c *gin.Context) {
	var patch biolinks.BiolinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidPayload(c)
		return
	}
	updated, err := h.store.UpdateBiolink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), patch)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentBiolink(updated))
}

func (h *httpHandler) handleDeleteBiolink(c *gin.Context) {
	if err := h.store.DeleteBiolink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id"))); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCreateLink(c *gin.Context) {
	var request createLinkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	created, err := h.store.CreateLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), biolinks.CreateLinkInput{
		Title: request.Title,
		URL:   request.URL,
		Icon:  request.Icon,
	})
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentLink(created))
}

func (h *httpHandler) handleUpdateLink(c *gin.Context) {
	var patch biolinks.LinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidPayload(c)
		return
	}
	updated, err := h.store.UpdateLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), patch)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentLink(updated))
}

func (h *httpHandler) handleDeleteLink(c *gin.Context) {
	if err := h.store.DeleteLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id"))); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReorderLinks(c *gin.Context) {
	var request reorderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	if err := h.store.ReorderLinks(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), positionUpdates(request)); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCreateSocialLink(c *gin.Context) {
	var request createSocialLinkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	created, err := h.store.CreateSocialLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), biolinks.CreateSocialLinkInput{
		Platform: request.Platform,
		URL:      request.URL,
		Position: request.Position,
		Visible:  request.Visible,
	})
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentSocialLink(created))
}

func (h *httpHandler) handleUpdateSocialLink(c *gin.Context) {
	var patch biolinks.SocialLinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidPayload(c)
		return
	}
	updated, err := h.store.UpdateSocialLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), patch)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentSocialLink(updated))
}

func (h *httpHandler) handleDeleteSocialLink(c *gin.Context) {
	if err := h.store.DeleteSocialLink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id"))); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReorderSocialLinks(c *gin.Context) {
	var request reorderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	if err := h.store.ReorderSocialLinks(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), positionUpdates(request)); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListEmailSubscribers(c *gin.Context) {
	stored, err := h.store.ListEmailSubscribers(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	payload := make([]subscriberPayload, 0, len(stored))
	for _, subscriber := range stored {
		payload = append(payload, presentSubscriber(subscriber))
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": payload})
}
