package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/qchemaxis/internal/apperr"
)

// ErrorCase maps an error kind to an HTTP status code.
type ErrorCase struct {
	Kind   apperr.Kind
	Status int
}

var errorCases = []ErrorCase{
	{Kind: apperr.KindValidation, Status: http.StatusBadRequest},
	{Kind: apperr.KindConflict, Status: http.StatusConflict},
	{Kind: apperr.KindAuth, Status: http.StatusUnauthorized},
	{Kind: apperr.KindForbidden, Status: http.StatusForbidden},
	{Kind: apperr.KindNotFound, Status: http.StatusNotFound},
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	kind := apperr.KindOf(err)
	for _, cs := range errorCases {
		if cs.Kind == kind {
			return cs.Status
		}
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondError writes err as an ErrorResponse. The underlying cause is only
// exposed in dev mode.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := StatusOf(err)
	resp := ErrorResponse{Error: apperr.MessageOf(err)}
	if h.devMode && status == http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, resp)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}
