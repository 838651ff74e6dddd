// Package grant defines the immutable grant record, the inputs used to create
// one, and the persistence contract every ledger backend implements.
package grant

import (
	"time"

	"github.com/xraph/kudos/id"
)

// Grant is a single recorded act of recognition. Once a store has assigned
// ID and CreatedAt the record is never mutated or deleted.
type Grant struct {
	ID                   id.GrantID `json:"id"`
	SenderID             string     `json:"sender_id"`
	SenderUsername       string     `json:"sender_username"`
	SenderDisplayName    string     `json:"sender_display_name"`
	RecipientID          string     `json:"recipient_id"`
	RecipientUsername    string     `json:"recipient_username"`
	RecipientDisplayName string     `json:"recipient_display_name"`
	GroupID              string     `json:"group_id"`
	GroupName            string     `json:"group_name,omitempty"`
	ChannelID            string     `json:"channel_id,omitempty"`
	Message              string     `json:"message"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Clone returns a copy so callers cannot reach a store's internal record.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Input carries every Grant field a caller supplies. ID and CreatedAt are
// assigned by the store.
type Input struct {
	SenderID             string
	SenderUsername       string
	SenderDisplayName    string
	RecipientID          string
	RecipientUsername    string
	RecipientDisplayName string
	GroupID              string
	GroupName            string
	ChannelID            string
	Message              Message
}

// Candidate is the subset of a prospective grant the admissibility rules
// look at. RecipientEligible is decided by the calling layer (for example,
// false for bot accounts).
type Candidate struct {
	SenderID          string
	RecipientID       string
	GroupID           string
	RecipientEligible bool
}

// Candidate derives the admissibility view of the input.
func (in Input) Candidate(recipientEligible bool) Candidate {
	return Candidate{
		SenderID:          in.SenderID,
		RecipientID:       in.RecipientID,
		GroupID:           in.GroupID,
		RecipientEligible: recipientEligible,
	}
}

// Build materializes the record to hand to a store. The message must already
// have been checked against MaxMessageLength.
func (in Input) Build() *Grant {
	return &Grant{
		SenderID:             in.SenderID,
		SenderUsername:       in.SenderUsername,
		SenderDisplayName:    displayOr(in.SenderDisplayName, in.SenderUsername),
		RecipientID:          in.RecipientID,
		RecipientUsername:    in.RecipientUsername,
		RecipientDisplayName: displayOr(in.RecipientDisplayName, in.RecipientUsername),
		GroupID:              in.GroupID,
		GroupName:            in.GroupName,
		ChannelID:            in.ChannelID,
		Message:              in.Message.Text(),
	}
}

func displayOr(display, username string) string {
	if display != "" {
		return display
	}
	return username
}

// Recognition is the slice of a grant shown in a recipient's recent list.
type Recognition struct {
	SenderDisplayName string    `json:"sender_display_name"`
	Message           string    `json:"message"`
	CreatedAt         time.Time `json:"created_at"`
}

// Recognition projects the grant for a received summary.
func (g *Grant) Recognition() Recognition {
	return Recognition{
		SenderDisplayName: g.SenderDisplayName,
		Message:           g.Message,
		CreatedAt:         g.CreatedAt,
	}
}

// RecipientCount is one leaderboard row.
type RecipientCount struct {
	RecipientID          string `json:"recipient_id"`
	RecipientDisplayName string `json:"recipient_display_name"`
	Count                int64  `json:"count"`
}
