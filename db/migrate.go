package db

import (
	"fmt"

	"github.com/bobberdolle1/Puppeteer/db/models"
	"gorm.io/gorm"
)

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(
		&models.Persona{},
		&models.ChatSettings{},
		&models.Account{},
		&models.Message{},
		&models.MemoryChunk{},
		&models.MemoryWatermark{},
		&models.RuntimeConfig{},
	)
}
