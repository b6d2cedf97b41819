package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *App) loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		info, err := a.login(c.Request.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		case errors.Is(err, models.ErrUserDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			config.LogError(config.GetLogger(), "server", "loginHandler", "login", req.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func (a *App) logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := a.logout(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}
