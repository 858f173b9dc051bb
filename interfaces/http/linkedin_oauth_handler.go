package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
	"linkedpost/usecase"
)

type ILinkedInOAuthHandler interface {
	GetAuthURL(c *gin.Context)
	Callback(c *gin.Context)
	Status(c *gin.Context)
	Disconnect(c *gin.Context)
}

type LinkedInOAuthHandler struct {
	linkedInUsecase usecase.ILinkedInUsecase
	// successRedirect, when set, is where the browser lands after connecting.
	successRedirect string
}

func NewLinkedInOAuthHandler(linkedInUsecase usecase.ILinkedInUsecase, successRedirect string) ILinkedInOAuthHandler {
	return &LinkedInOAuthHandler{linkedInUsecase: linkedInUsecase, successRedirect: successRedirect}
}

// GetAuthURL handles GET /api/linkedin/auth.
func (h *LinkedInOAuthHandler) GetAuthURL(c *gin.Context) {
	url, err := h.linkedInUsecase.AuthURL(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("LinkedIn auth error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to initialize LinkedIn auth"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Callback handles GET /auth/linkedin/callback.
func (h *LinkedInOAuthHandler) Callback(c *gin.Context) {
	_, err := h.linkedInUsecase.Callback(c.Request.Context(), c.Query("code"), c.Query("state"), c.Query("error"))
	switch {
	case err == nil:
	case errors.Is(err, model.ErrAuthorizationDenied),
		errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrMissingCode):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	default:
		logger.GetLogger().WithField("error", err).Error("LinkedIn callback error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to complete LinkedIn authorization"})
		return
	}

	if h.successRedirect != "" {
		c.Redirect(http.StatusFound, h.successRedirect)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status handles GET /api/linkedin/status.
func (h *LinkedInOAuthHandler) Status(c *gin.Context) {
	status, err := h.linkedInUsecase.Status(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("LinkedIn status error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get LinkedIn connection status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Disconnect handles POST /api/linkedin/disconnect.
func (h *LinkedInOAuthHandler) Disconnect(c *gin.Context) {
	if err := h.linkedInUsecase.Disconnect(c.Request.Context(), c.GetString("user_id")); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error disconnecting LinkedIn")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to disconnect LinkedIn account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "LinkedIn disconnected successfully"})
}
