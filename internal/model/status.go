package model

import "fmt"

// MessageStatus is the delivery state of a CampaignMessage.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusReplied   MessageStatus = "replied"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders the non-terminal statuses. failed has no rank: it is reachable
// from any state and never left.
var statusRank = map[MessageStatus]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusReplied:   4,
}

// Rank returns the position of s in the delivery order, or -1 for failed and unknown values.
func (s MessageStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

func (s MessageStatus) Valid() bool {
	return s == StatusFailed || s.Rank() >= 0
}

func (s MessageStatus) Terminal() bool {
	return s == StatusFailed
}

// CanAdvance reports whether a message in status from may be moved to status to.
func CanAdvance(from, to MessageStatus) bool {
	if from == StatusFailed || !to.Valid() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return to.Rank() > from.Rank()
}

func ParseMessageStatus(raw string) (MessageStatus, error) {
	s := MessageStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown message status %q", raw)
	}
	return s, nil
}
