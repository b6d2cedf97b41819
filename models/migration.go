package models

import (
	"log"

	"github.com/medequip/equipment_backend/config"
)

// Everything else lives behind the RPC surface; only login users are local.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
