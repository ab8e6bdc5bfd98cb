package models

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionOrder is one manufactured order. OrderNumber is unique per exact
// string; variants of the same base ("1001", "1001-a") are separate rows.
type ProductionOrder struct {
	ID           int        `gorm:"primary_key" json:"id"`
	OrderNumber  string     `gorm:"uniqueIndex;size:64;not null" json:"order_number" binding:"required"`
	DeliveryId   *int       `gorm:"index" json:"delivery_id"`
	CustomerName string     `gorm:"size:255" json:"customer_name"`
	SourceFile   string     `gorm:"size:255" json:"source_file"`
	ImportedAt   *time.Time `json:"imported_at"`

	// Derived aggregates, recomputed from dependents inside the apply
	// transaction. Never written outside of it.
	UnitCount      int             `json:"unit_count"`
	GlazingCount   int             `json:"glazing_count"`
	OpenDemand     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"open_demand"`
	TotalLineValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_line_value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Units                []ManufacturedUnit    `gorm:"foreignKey:OrderId" json:"units"`
	GlazingItems         []GlazingItem         `gorm:"foreignKey:OrderId" json:"glazing_items"`
	MaterialRequirements []MaterialRequirement `gorm:"foreignKey:OrderId" json:"material_requirements"`
	LineItems            []OrderLineItem       `gorm:"foreignKey:OrderId" json:"line_items"`
}

// ManufacturedUnit is one physical window/door unit of an order.
type ManufacturedUnit struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"size:255" json:"description"`
	WidthMm     int             `json:"width_mm"`
	HeightMm    int             `json:"height_mm"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
}

// GlazingItem is one glass pane requirement belonging to a unit position.
type GlazingItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	Position  int             `json:"position"`
	GlassType string          `gorm:"size:100" json:"glass_type"`
	WidthMm   int             `json:"width_mm"`
	HeightMm  int             `json:"height_mm"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
}

// MaterialRequirement is one derived material line (profile, hardware).
// Zero-quantity lines are persisted for audit but excluded from demand sums.
type MaterialRequirement struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	ArticleCode string          `gorm:"size:64;not null" json:"article_code"`
	Description string          `gorm:"size:255" json:"description"`
	Unit        string          `gorm:"size:16" json:"unit"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
}

type OrderLineItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	ArticleCode string          `gorm:"size:64" json:"article_code"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
}

// GetOrderByNumber returns nil, nil when no order exists for the exact number.
func GetOrderByNumber(db *gorm.DB, orderNumber string) (*ProductionOrder, error) {
	var order ProductionOrder
	err := db.Where("order_number = ?", utils.NormalizeOrderNumber(orderNumber)).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrderDependents removes every dependent row of the order. Full-replace
// semantics: callers re-insert the complete new set inside the same transaction.
func DeleteOrderDependents(tx *gorm.DB, orderId int) error {
	if err := tx.Where("order_id = ?", orderId).Delete(&ManufacturedUnit{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", orderId).Delete(&GlazingItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", orderId).Delete(&MaterialRequirement{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", orderId).Delete(&OrderLineItem{}).Error; err != nil {
		return err
	}
	return nil
}

// DeleteOrderCascade removes the order together with all dependent rows.
func DeleteOrderCascade(tx *gorm.DB, orderId int) error {
	if err := DeleteOrderDependents(tx, orderId); err != nil {
		return err
	}
	return tx.Where("id = ?", orderId).Delete(&ProductionOrder{}).Error
}

// RecomputeOrderAggregates reloads the freshly inserted dependents and writes
// the derived fields. Zero-quantity material lines stay out of OpenDemand.
func RecomputeOrderAggregates(tx *gorm.DB, orderId int) error {
	var unitCount int64
	if err := tx.Model(&ManufacturedUnit{}).Where("order_id = ?", orderId).Count(&unitCount).Error; err != nil {
		return err
	}
	var glazingCount int64
	if err := tx.Model(&GlazingItem{}).Where("order_id = ?", orderId).Count(&glazingCount).Error; err != nil {
		return err
	}

	var requirements []MaterialRequirement
	if err := tx.Where("order_id = ?", orderId).Find(&requirements).Error; err != nil {
		return err
	}
	openDemand := decimal.Zero
	for _, req := range requirements {
		if req.Quantity.IsZero() {
			continue
		}
		openDemand = openDemand.Add(req.Quantity)
	}

	var lineItems []OrderLineItem
	if err := tx.Where("order_id = ?", orderId).Find(&lineItems).Error; err != nil {
		return err
	}
	totalValue := decimal.Zero
	for _, li := range lineItems {
		totalValue = totalValue.Add(li.TotalPrice)
	}

	return tx.Model(&ProductionOrder{}).Where("id = ?", orderId).Updates(map[string]interface{}{
		"unit_count":       unitCount,
		"glazing_count":    glazingCount,
		"open_demand":      openDemand,
		"total_line_value": totalValue,
	}).Error
}
