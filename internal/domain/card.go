package domain

import "time"

// BusinessCard is a participant's shareable profile within a workspace.
type BusinessCard struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	OwnerID     *string   `json:"ownerId,omitempty"`
	DisplayName string    `json:"displayName"`
	Headline    string    `json:"headline,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedByID string    `json:"createdById,omitempty"`
	UpdatedByID string    `json:"updatedById,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the card.
func (c BusinessCard) Clone() BusinessCard {
	out := c
	out.OwnerID = cloneString(c.OwnerID)
	return out
}

// CardSnapshot is the frozen copy of a card embedded in a signup. Later card
// edits do not change historical signups.
type CardSnapshot struct {
	CardID      string    `json:"cardId"`
	DisplayName string    `json:"displayName"`
	Headline    string    `json:"headline,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// Snapshot freezes the card at the given instant.
func (c BusinessCard) Snapshot(at time.Time) CardSnapshot {
	return CardSnapshot{
		CardID:      c.ID,
		DisplayName: c.DisplayName,
		Headline:    c.Headline,
		CompanyName: c.CompanyName,
		Email:       c.Email,
		Phone:       c.Phone,
		Website:     c.Website,
		CapturedAt:  at,
	}
}
