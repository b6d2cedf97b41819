package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/excel"
	"github.com/medequip/equipment_backend/rpc"
)

const (
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	equipmentImportFile = "Mau_Nhap_Thiet_Bi.xlsx"
	deviceQuotaFile     = "Mau_Dinh_Muc_Thiet_Bi.xlsx"
)

type templateFunc func(ctx context.Context, caller rpc.Caller) ([]byte, error)

func (a *App) templateHandler(filename string, generate templateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := generate(c.Request.Context(), a.caller)
		if err != nil {
			_ = c.Error(err)
			if errors.Is(err, excel.ErrTemplateConstruction) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			// reference data could not be loaded
			rpcErrorResponse(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, xlsxContentType, content)
	}
}
