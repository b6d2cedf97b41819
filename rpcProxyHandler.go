package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/rpc"
	"github.com/medequip/equipment_backend/utils"
)

// rpcErrorResponse maps a failed backend call onto the response. Backend
// rejections keep their 4xx status; everything else is a bad gateway.
func rpcErrorResponse(c *gin.Context, err error) {
	var rpcErr *rpc.Error
	switch {
	case errors.Is(err, rpc.ErrFunctionNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrMissingIdentity):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.As(err, &rpcErr):
		status := rpcErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error":   rpcErr.Error(),
			"code":    rpcErr.Code,
			"details": rpcErr.Details,
			"hint":    rpcErr.Hint,
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (a *App) rpcProxyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.proxyEnabled != nil && !a.proxyEnabled() {
			customNotFoundHandler(c)
			return
		}
		function := c.Param("function")
		if !a.allow.Allowed(function) {
			c.JSON(http.StatusForbidden, gin.H{"error": "function not allowed: " + function})
			return
		}

		args := map[string]any{}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
				return
			}
		}

		result, err := a.caller.Call(c.Request.Context(), function, args)
		if err != nil {
			_ = c.Error(err)
			rpcErrorResponse(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", result)
	}
}
