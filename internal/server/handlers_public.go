package server

import (
	"net/http"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/gin-gonic/gin"
)

func visitFrom(c *gin.Context) analytics.Visit {
	return analytics.NewVisit(c.Request.UserAgent(), c.Request.Referer())
}

func (h *httpHandler) handleResolvePublic(c *gin.Context) {
	page, err := h.resolver.Resolve(c.Request.Context(), c.Param("username"), visitFrom(c))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleQrScan(c *gin.Context) {
	username, err := h.resolver.ResolveScan(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.qrCodes.BiolinkURL(username))
}

func (h *httpHandler) handleListSocialLinks(c *gin.Context) {
	stored, err := h.store.ListSocialLinks(c.Request.Context(), biolinks.ResourceID(c.Query("biolink_id")))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	payload := make([]socialLinkPayload, 0, len(stored))
	for _, socialLink := range stored {
		payload = append(payload, presentSocialLink(socialLink))
	}
	c.JSON(http.StatusOK, gin.H{"social_links": payload})
}

func (h *httpHandler) handleAddEmailSubscriber(c *gin.Context) {
	var request addSubscriberRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	created, err := h.store.AddEmailSubscriber(c.Request.Context(), biolinks.ResourceID(request.BiolinkID), request.Email)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentSubscriber(created))
}

func (h *httpHandler) handleTrackClick(c *gin.Context) {
	var request trackClickRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	err := h.recorder.RecordClick(
		c.Request.Context(),
		biolinks.ResourceID(request.BiolinkID),
		biolinks.ResourceID(request.LinkID),
		visitFrom(c),
	)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
