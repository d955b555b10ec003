package domain

import "time"

// MaxMessageLength caps the trimmed body of a direct message.
const MaxMessageLength = 1000

// MessageStatus declares the delivery states a message can carry.
// Only StatusSent is ever assigned; delivered/seen are an extension
// point and no code path advances a message past sent.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// Message is a direct message between two mutual contacts.
// Only the sender may edit or delete it; deletion is destructive.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Body       string
	Status     MessageStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
