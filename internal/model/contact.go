// internal/model/contact.go
package model

import "time"

type Contact struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Phone     string     `db:"phone" json:"phone"`
	Tags      []string   `db:"tags" json:"tags"`
	OptedOut  bool       `db:"opted_out" json:"opted_out"`
	OptOutAt  *time.Time `db:"opt_out_at" json:"opt_out_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// HasAnyTag reports whether the contact carries at least one of tags.
func (c *Contact) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
