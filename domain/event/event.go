// Package event defines the closed set of domain events flowing from
// the synchronous mutation paths to the live-session fan-out.
package event

import "dm-lab/domain"

// DomainEvent is a sealed tagged variant: exactly the types below
// implement it. Consumers dispatch with a type switch instead of
// string-keyed topics.
type DomainEvent interface {
	isDomainEvent()
}

// MessageSent carries the persisted record plus both participants.
type MessageSent struct {
	Message  domain.Message
	Sender   domain.UserRef
	Receiver domain.UserRef
}

// MessageEdited is published after the body mutation is stored.
type MessageEdited struct {
	MessageID  int64
	SenderID   int64
	ReceiverID int64
	NewBody    string
}

// MessageDeleted is published before the destructive delete so that
// listeners still see both participant ids.
type MessageDeleted struct {
	MessageID  int64
	SenderID   int64
	ReceiverID int64
}

// ContactRequestSent notifies the addressee of a new pending request.
type ContactRequestSent struct {
	Request domain.ContactRequest
	Sender  domain.UserRef
}

// ContactAccepted tells both sides to refresh their contact lists.
type ContactAccepted struct {
	SenderID   int64
	ReceiverID int64
}

func (MessageSent) isDomainEvent()        {}
func (MessageEdited) isDomainEvent()      {}
func (MessageDeleted) isDomainEvent()     {}
func (ContactRequestSent) isDomainEvent() {}
func (ContactAccepted) isDomainEvent()    {}
