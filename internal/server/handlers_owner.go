package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/biolinkhq/biolink/internal/qrcode"
	"github.com/biolinkhq/biolink/internal/users"
	"github.com/gin-gonic/gin"
)

const (
	qrFormatPNG       = "png"
	codeInvalidQrSize = "http.invalid_qr_size"
)

func (h *httpHandler) handleAnalyticsOverview(c *gin.Context) {
	overview, err := h.aggregator.Overview(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *httpHandler) handleAdvancedAnalytics(c *gin.Context) {
	days, present, ok := intQuery(c, "days")
	if !ok {
		respondInvalidQuery(c)
		return
	}
	if !present {
		days = h.aggregator.DefaultDays()
	}
	report, err := h.aggregator.Advanced(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")), days)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleQrCode returns the QR targets of an owned biolink, or the rendered PNG when format=png.
func (h *httpHandler) handleQrCode(c *gin.Context) {
	size, _, ok := intQuery(c, "size")
	if !ok {
		respondInvalidQuery(c)
		return
	}
	detail, err := h.store.GetBiolink(c.Request.Context(), actorFrom(c), biolinks.ResourceID(c.Param("id")))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	username := detail.Biolink.Username

	if c.Query("format") == qrFormatPNG {
		image, err := h.qrCodes.RenderPNG(username, size)
		if err != nil {
			h.respondQrError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", image)
		return
	}

	targets, err := h.qrCodes.Targets(username, size)
	if err != nil {
		h.respondQrError(c, err)
		return
	}
	c.JSON(http.StatusOK, targets)
}

func (h *httpHandler) respondQrError(c *gin.Context, err error) {
	if errors.Is(err, qrcode.ErrInvalidSize) {
		c.JSON(http.StatusBadRequest, errorBody(biolinks.KindInvalidInput, codeInvalidQrSize))
		return
	}
	h.respondWithError(c, err)
}

func (h *httpHandler) handleCreateAccount(c *gin.Context) {
	var request createAccountRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidPayload(c)
		return
	}
	account, err := h.accounts.CreateAccount(c.Request.Context(), actorFrom(c), users.CreateAccountInput{
		Email:   request.Email,
		Name:    request.Name,
		IsAdmin: request.IsAdmin,
	})
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentAccount(account))
}

// intQuery parses an optional integer query parameter. An absent or empty parameter
// reports present=false and yields zero.
func intQuery(c *gin.Context, name string) (value int, present bool, ok bool) {
	raw, found := c.GetQuery(name)
	if !found || raw == "" {
		return 0, false, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, false
	}
	return value, true, true
}
