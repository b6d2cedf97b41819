// seed-admin creates or updates the global administrator login.
//
// Usage (from backend directory):
//
//	ADMIN_PASSWORD=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// ADMIN_USERNAME defaults to "qltb_admin". When REDIS_ADDRESS is set the
// user's live sessions are dropped after a password change.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/utils"
)

const (
	defaultAdminUsername = "qltb_admin"
	adminName            = "Quản trị hệ thống"
)

func main() {
	username := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	config.ConnectDatabaseWithRetry(ctx)
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry(ctx)
	}
	models.MigrateTable()

	existing, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u, err := models.CreateUser(ctx, &models.NewUser{
			Username: username,
			FullName: adminName,
			Password: password,
			Role:     models.RoleGlobal,
			IsActive: utils.NewTrue(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", utils.ProcessValidationErrors(err))
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q id=%d role=%s\n", u.Username, u.ID, u.Role)
		return
	}

	if err := db.WithContext(ctx).Model(existing).Updates(map[string]any{
		"full_name": adminName,
		"is_active": true,
		"role":      models.RoleGlobal,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	if err := existing.SetPassword(ctx, password); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q role=%s\n", username, models.RoleGlobal)
}
