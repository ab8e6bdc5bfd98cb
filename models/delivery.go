package models

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
	"gorm.io/gorm"
)

// Delivery groups the orders imported from one folder batch.
type Delivery struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Label        string     `gorm:"size:255;not null" json:"label"`
	SourceFolder string     `gorm:"size:512" json:"source_folder"`
	DeliveryDate *time.Time `json:"delivery_date"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Orders []ProductionOrder `gorm:"foreignKey:DeliveryId" json:"orders"`
}

func CreateDelivery(db *gorm.DB, label string, sourceFolder string, deliveryDate *time.Time) (*Delivery, error) {
	delivery := Delivery{
		Label:        label,
		SourceFolder: sourceFolder,
		DeliveryDate: deliveryDate,
	}
	if err := db.Create(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func GetDelivery(db *gorm.DB, id int) (*Delivery, error) {
	var delivery Delivery
	err := db.Where("id = ?", id).Take(&delivery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("delivery", id)
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}
