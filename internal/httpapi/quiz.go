package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/qchemaxis/internal/middleware"
)

type submitRequest struct {
	Answers map[int]string `json:"answers"`
}

func (h *Handler) quizQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, h.quiz.Questions())
}

func (h *Handler) quizSubmit(c *gin.Context) {
	var in submitRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid answers format")
		return
	}

	ctx := c.Request.Context()
	res, err := h.quiz.Submit(ctx, middleware.GetUserID(ctx), in.Answers)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) quizHistory(c *gin.Context) {
	ctx := c.Request.Context()
	results, err := h.quiz.History(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
