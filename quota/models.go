// Package quota holds the allotment view derived for a sender.
package quota

import "github.com/xraph/kudos/period"

// Balance is a sender's allotment usage within one group and period.
type Balance struct {
	SenderID  string        `json:"sender_id"`
	GroupID   string        `json:"group_id"`
	Limit     int64         `json:"limit"`
	Used      int64         `json:"used"`
	Remaining int64         `json:"remaining"`
	Period    period.Period `json:"period"`
}

// New derives a Balance from the number of grants already sent.
// Remaining never goes below zero even if concurrent sends overshot the limit.
func New(senderID, groupID string, limit, used int64, p period.Period) *Balance {
	return &Balance{
		SenderID:  senderID,
		GroupID:   groupID,
		Limit:     limit,
		Used:      used,
		Remaining: max(0, limit-used),
		Period:    p,
	}
}

// Exhausted reports whether no grants are left.
func (b *Balance) Exhausted() bool {
	return b.Remaining <= 0
}
