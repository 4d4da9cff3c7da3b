package codes

import "time"

// Code types seeded in the allcode table.
const (
	TypeRole   = "ROLE"
	TypeTime   = "TIME"
	TypeStatus = "STATUS"
)

// Code maps to the allcode table: one display entry per enumerated wire
// code. Display only; the booking engine validates against its own closed
// types, never against this table.
type Code struct {
	KeyMap    string    `db:"key_map" json:"key_map"`
	Type      string    `db:"type" json:"type"`
	ValueEn   string    `db:"value_en" json:"value_en"`
	ValueVi   string    `db:"value_vi" json:"value_vi"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
