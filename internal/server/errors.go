package server

import (
	"net/http"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidPayload = "http.invalid_payload"
	codeInvalidQuery   = "http.invalid_query"
)

func statusFor(kind biolinks.ErrorKind) int {
	switch kind {
	case biolinks.KindUnauthorized:
		return http.StatusUnauthorized
	case biolinks.KindNotFound:
		return http.StatusNotFound
	case biolinks.KindForbidden:
		return http.StatusForbidden
	case biolinks.KindConflict:
		return http.StatusConflict
	case biolinks.KindInvalidInput, biolinks.KindInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(kind biolinks.ErrorKind, code string) gin.H {
	body := gin.H{"error": string(kind)}
	if code != "" {
		body["code"] = code
	}
	return body
}

// respondWithError writes the taxonomy response for err. Internal causes are logged, never returned.
func (h *httpHandler) respondWithError(c *gin.Context, err error) {
	kind, code := h.classify(c, err)
	c.JSON(statusFor(kind), errorBody(kind, code))
}

func (h *httpHandler) abortWithError(c *gin.Context, err error) {
	kind, code := h.classify(c, err)
	c.AbortWithStatusJSON(statusFor(kind), errorBody(kind, code))
}

func (h *httpHandler) classify(c *gin.Context, err error) (biolinks.ErrorKind, string) {
	kind := biolinks.KindOf(err)
	code := biolinks.CodeOf(err)
	if kind == biolinks.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
	}
	return kind, code
}

func respondInvalidPayload(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorBody(biolinks.KindInvalidInput, codeInvalidPayload))
}

func respondInvalidQuery(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorBody(biolinks.KindInvalidInput, codeInvalidQuery))
}
