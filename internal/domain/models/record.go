package models

import "time"

// Record is one instance of a Table's data. Data keys are the owning table's
// column names; the shape conforms to the column set at write time.
type Record struct {
	ID        int64                  `json:"id"`
	TableID   int64                  `json:"table_id"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// LinkRecord is one edge of a many-to-many relationship, optionally carrying
// attributes conforming to the LinkTable's columns.
type LinkRecord struct {
	ID           int64                  `json:"id"`
	LinkTableID  int64                  `json:"link_table_id"`
	FromRecordID int64                  `json:"from_record_id"`
	ToRecordID   int64                  `json:"to_record_id"`
	Data         map[string]interface{} `json:"data"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// User is an authenticated caller
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
