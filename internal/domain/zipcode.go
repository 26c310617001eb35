package domain

import "time"

// ZipCode represents one row of the city/state to postal-code lookup table.
// The table is seeded at startup and consulted before any geocoding call that
// would otherwise be needed just to recover a postal code.
type ZipCode struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	City      string    `gorm:"type:text;not null;uniqueIndex:idx_zip_codes_city_state" json:"city"`
	State     string    `gorm:"type:text;not null;uniqueIndex:idx_zip_codes_city_state" json:"state"`
	Zip       string    `gorm:"type:text;not null" json:"zip"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ZipCode.
func (ZipCode) TableName() string {
	return "zip_codes"
}
