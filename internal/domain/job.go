package domain

import "time"

// JobPosting represents a job listing synchronized from the search index,
// enriched with a standardized location and geographic coordinates.
type JobPosting struct {
	ID          string `gorm:"type:text;primaryKey" json:"id"`
	JobKey      string `gorm:"type:text;not null;uniqueIndex:idx_job_postings_key" json:"job_key"`
	Title       string `gorm:"type:text;not null" json:"title"`
	CompanyName string `gorm:"type:text" json:"company_name"`
	URL         string `gorm:"type:text" json:"url"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Raw location fields as reported by the search index.
	RawCity    string `gorm:"type:text" json:"raw_city,omitempty"`
	RawState   string `gorm:"type:text" json:"raw_state,omitempty"`
	RawCountry string `gorm:"type:text" json:"raw_country,omitempty"`

	// Standardized location fields produced by the location parser.
	City    string `gorm:"type:text;index:idx_job_postings_city" json:"city"`
	State   string `gorm:"type:text;index:idx_job_postings_state" json:"state"`
	Country string `gorm:"type:text" json:"country"`

	// Geocoding results. Latitude and Longitude are nil when unresolved.
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	PostalCode string   `gorm:"type:text" json:"postal_code,omitempty"`

	SourceName string    `gorm:"type:text;index:idx_job_postings_source" json:"source_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for JobPosting.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (JobPosting) TableName() string {
	return "job_postings"
}

// HasGeo reports whether the posting carries resolved coordinates.
func (j *JobPosting) HasGeo() bool {
	return j.Latitude != nil && j.Longitude != nil
}
