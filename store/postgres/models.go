package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
)

// ==================== Grant models ====================

type grantModel struct {
	grove.BaseModel `grove:"table:kudos_grants"`

	ID                   string    `grove:"id,pk"`
	SenderID             string    `grove:"sender_id"`
	SenderUsername       string    `grove:"sender_username"`
	SenderDisplayName    string    `grove:"sender_display_name"`
	RecipientID          string    `grove:"recipient_id"`
	RecipientUsername    string    `grove:"recipient_username"`
	RecipientDisplayName string    `grove:"recipient_display_name"`
	GroupID              string    `grove:"group_id"`
	GroupName            string    `grove:"group_name"`
	ChannelID            string    `grove:"channel_id"`
	Message              string    `grove:"message"`
	CreatedAt            time.Time `grove:"created_at"`
}

func toGrantModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:                   g.ID.String(),
		SenderID:             g.SenderID,
		SenderUsername:       g.SenderUsername,
		SenderDisplayName:    g.SenderDisplayName,
		RecipientID:          g.RecipientID,
		RecipientUsername:    g.RecipientUsername,
		RecipientDisplayName: g.RecipientDisplayName,
		GroupID:              g.GroupID,
		GroupName:            g.GroupName,
		ChannelID:            g.ChannelID,
		Message:              g.Message,
		CreatedAt:            g.CreatedAt,
	}
}

func fromGrantModel(m *grantModel) (*grant.Grant, error) {
	grantID, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, err
	}

	return &grant.Grant{
		ID:                   grantID,
		SenderID:             m.SenderID,
		SenderUsername:       m.SenderUsername,
		SenderDisplayName:    m.SenderDisplayName,
		RecipientID:          m.RecipientID,
		RecipientUsername:    m.RecipientUsername,
		RecipientDisplayName: m.RecipientDisplayName,
		GroupID:              m.GroupID,
		GroupName:            m.GroupName,
		ChannelID:            m.ChannelID,
		Message:              m.Message,
		CreatedAt:            m.CreatedAt,
	}, nil
}
