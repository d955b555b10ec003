package domain

import "time"

// RequestStatus is the lifecycle of a contact request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// ContactRequest is a directed invitation. Accepting it materializes
// an undirected contact edge between the two users.
type ContactRequest struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Status     RequestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
