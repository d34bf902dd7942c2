package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProductImage struct {
	gorm.Model
	ProductID   uint   `json:"productId" gorm:"index;not null"`
	Key         string `json:"key" gorm:"not null"`
	Url         string `json:"url"`
	ContentType string `json:"contentType"`
}

type Product struct {
	gorm.Model
	VendorID    uint            `json:"vendorId" gorm:"index"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	Category    string          `json:"category" gorm:"index"`
	Strain      string          `json:"strain"`
	THCContent  float64         `json:"thcContent"`
	CBDContent  float64         `json:"cbdContent"`
	Weight      float64         `json:"weight"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	ImageUrl    string          `json:"imageUrl"`
	IsActive    bool            `json:"isActive" gorm:"not null;default:true;index"`
	Attributes  datatypes.JSON  `json:"attributes,omitempty"`
	Images      []ProductImage  `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}
