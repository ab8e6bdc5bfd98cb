package models

import (
	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ProductionOrder{},
		&ManufacturedUnit{},
		&GlazingItem{},
		&MaterialRequirement{},
		&OrderLineItem{},
		&ImportRecord{},
		&FolderLock{},
		&Delivery{},
		&PriceDocument{},
		&PriceEntry{},
		&ImportEventRecord{},
	)
	utils.ErrorPanic(err)
}
