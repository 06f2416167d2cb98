package models

import "time"

// User is a known account and its presence state. Username is unique and
// immutable; the online flag and lastSeen are mutated only by the
// presence directory's connect/disconnect transitions.
type User struct {
	ID       int64      `db:"id" json:"id"`
	Username string     `db:"username" json:"username"`
	Online   bool       `db:"online" json:"online"`
	LastSeen *time.Time `db:"last_seen" json:"lastSeen"`
}
