package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/qchemaxis/internal/middleware"
	"github.com/mmynk/qchemaxis/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    any    `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) signup(c *gin.Context) {
	var in service.SignupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	res, err := h.account.Signup(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Message: "User created successfully", Token: res.Token, User: res.User})
}

func (h *Handler) login(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	res, err := h.account.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Message: "Login successful", Token: res.Token, User: res.User})
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()
	h.account.Logout(ctx, middleware.GetUserID(ctx))
	c.JSON(http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (h *Handler) status(c *gin.Context) {
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))

	res, err := h.account.Status(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) refresh(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.account.Refresh(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token})
}

func (h *Handler) federatedLogin(c *gin.Context) {
	var in service.FederatedInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	res, err := h.account.FederatedLogin(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if res.Created {
		c.JSON(http.StatusCreated, authResponse{Message: "Account created successfully", Token: res.Token, User: res.User})
		return
	}
	c.JSON(http.StatusOK, authResponse{Message: "Login successful", Token: res.Token, User: res.User})
}

func (h *Handler) savePreferences(c *gin.Context) {
	var in service.PreferencesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Missing required preferences")
		return
	}

	ctx := c.Request.Context()
	if err := h.account.UpdatePreferences(ctx, middleware.GetUserID(ctx), in); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Preferences saved successfully"})
}

func (h *Handler) currentUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.account.CurrentUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) profile(c *gin.Context) {
	ctx := c.Request.Context()
	profile, err := h.account.Profile(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
