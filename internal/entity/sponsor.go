package entity

import (
	"encoding/json"
	"time"
)

// Sponsor is a promotional entry shown to supporters.
type Sponsor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	Logo      string    `json:"logo,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON writes CreatedAt with FormatTimestamp.
func (s Sponsor) MarshalJSON() ([]byte, error) {
	type plain Sponsor
	return json.Marshal(struct {
		plain
		CreatedAt string `json:"createdAt"`
	}{plain(s), FormatTimestamp(s.CreatedAt)})
}

// SponsorInput is the caller-supplied part of a sponsor. ID and CreatedAt are
// always generated.
type SponsorInput struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validate checks that the sponsor has an ID and a name.
func (s *Sponsor) Validate() error {
	if s.ID == "" {
		return errIDRequired
	}
	if s.Name == "" {
		return errNameRequired
	}
	return nil
}
