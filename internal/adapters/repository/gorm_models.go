package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table rows. Service and country sets are kept in link tables so candidate
// discovery stays a plain join that MySQL and SQLite both run.

type clientRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	CompanyName  string `gorm:"size:255;not null"`
	ContactEmail string `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (clientRow) TableName() string { return "clients" }

type projectRow struct {
	ID        int64               `gorm:"primaryKey;autoIncrement"`
	ClientID  int64               `gorm:"not null;index"`
	Client    clientRow           `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Country   string              `gorm:"size:2;not null;index"`
	Status    string              `gorm:"size:16;not null;index"`
	Services  []projectServiceRow `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (projectRow) TableName() string { return "projects" }

type projectServiceRow struct {
	ProjectID int64  `gorm:"primaryKey;autoIncrement:false"`
	Service   string `gorm:"primaryKey;size:64"`
}

func (projectServiceRow) TableName() string { return "project_services" }

type vendorRow struct {
	ID               int64              `gorm:"primaryKey;autoIncrement"`
	Name             string             `gorm:"size:255;not null"`
	ContactEmail     string             `gorm:"size:255"`
	Rating           int                `gorm:"not null;check:chk_vendors_rating,rating >= 0 AND rating <= 5"`
	ResponseSLAHours int                `gorm:"column:response_sla_hours;not null"`
	IsActive         bool               `gorm:"not null;index"`
	Services         []vendorServiceRow `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE"`
	Countries        []vendorCountryRow `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (vendorRow) TableName() string { return "vendors" }

type vendorServiceRow struct {
	VendorID int64  `gorm:"primaryKey;autoIncrement:false"`
	Service  string `gorm:"primaryKey;size:64;index"`
}

func (vendorServiceRow) TableName() string { return "vendor_services" }

type vendorCountryRow struct {
	VendorID int64  `gorm:"primaryKey;autoIncrement:false"`
	Country  string `gorm:"primaryKey;size:2;index"`
}

func (vendorCountryRow) TableName() string { return "vendor_countries" }

type matchRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	ProjectID int64           `gorm:"not null;uniqueIndex:uq_match_project_vendor"`
	VendorID  int64           `gorm:"not null;uniqueIndex:uq_match_project_vendor;index"`
	Score     decimal.Decimal `gorm:"type:decimal(6,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (matchRow) TableName() string { return "match_table" }

// vendorMatchRow is the scan target of the active-vendor match join.
type vendorMatchRow struct {
	ID               int64
	ProjectID        int64
	VendorID         int64
	Score            decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResponseSLAHours int `gorm:"column:response_sla_hours"`
}

type vendorHealthRow struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	VendorID      int64     `gorm:"not null;uniqueIndex"`
	SLAExpired    bool      `gorm:"column:sla_expired;not null;default:false"`
	LastCheckedAt time.Time `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (vendorHealthRow) TableName() string { return "vendor_health" }

type candidateRow struct {
	VendorID         int64  `gorm:"column:vendor_id"`
	VendorName       string `gorm:"column:vendor_name"`
	Rating           int    `gorm:"column:rating"`
	ResponseSLAHours int    `gorm:"column:response_sla_hours"`
	ServicesOverlap  int    `gorm:"column:services_overlap"`
}

// allModels lists every row type in migration order.
func allModels() []any {
	return []any{
		&clientRow{},
		&projectRow{},
		&projectServiceRow{},
		&vendorRow{},
		&vendorServiceRow{},
		&vendorCountryRow{},
		&matchRow{},
		&vendorHealthRow{},
	}
}
