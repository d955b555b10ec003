package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/domain/event"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

type IContactService interface {
	SendRequest(ctx context.Context, senderID, receiverID int64) (RequestView, error)
	PendingRequests(ctx context.Context, receiverID int64) ([]RequestView, error)
	Accept(ctx context.Context, requestID, receiverID int64) error
	Reject(ctx context.Context, requestID, receiverID int64) error
	Contacts(ctx context.Context, userID int64) ([]ContactView, error)
	AreContacts(ctx context.Context, a, b int64) (bool, error)
}

// RequestView is a contact request with the sender resolved, the shape
// pushed to the addressee and returned by the request list.
type RequestView struct {
	ID        int64                `json:"id"`
	Sender    domain.UserRef       `json:"sender"`
	Receiver  domain.UserRef       `json:"receiver"`
	Status    domain.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

// ContactView is the public slice of an account shown in contact lists.
type ContactView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ContactService owns the request/accept/reject workflow and answers
// the mutual-contact question gating every send.
type ContactService struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	contacts repositories.IContactRepository
	bus      contract.EventBus
}

func NewContactService(log *slog.Logger, users repositories.IUserRepository,
	contacts repositories.IContactRepository, bus contract.EventBus) *ContactService {
	return &ContactService{log: log, users: users, contacts: contacts, bus: bus}
}

func (s *ContactService) SendRequest(_ context.Context, senderID, receiverID int64) (RequestView, error) {
	if senderID == receiverID {
		return RequestView{}, apperrors.ErrSelfRequest
	}

	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return RequestView{}, err
	}
	receiver, err := s.users.GetByID(receiverID)
	if err != nil {
		return RequestView{}, err
	}

	connected, err := s.contacts.AreContacts(senderID, receiverID)
	if err != nil {
		return RequestView{}, fmt.Errorf("contact check: %w", err)
	}
	if connected {
		return RequestView{}, apperrors.ErrAlreadyContacts
	}

	request, err := s.contacts.CreateRequest(senderID, receiverID)
	if err != nil {
		return RequestView{}, err
	}

	s.bus.Publish(event.ContactRequestSent{Request: request, Sender: sender.Ref()})
	s.log.Info("contact request sent", "request_id", request.ID,
		"sender_id", senderID, "receiver_id", receiverID)

	return requestView(request, sender.Ref(), receiver.Ref()), nil
}

func (s *ContactService) PendingRequests(_ context.Context, receiverID int64) ([]RequestView, error) {
	receiver, err := s.users.GetByID(receiverID)
	if err != nil {
		return nil, err
	}

	requests, err := s.contacts.PendingForReceiver(receiverID)
	if err != nil {
		return nil, err
	}

	views := make([]RequestView, 0, len(requests))
	for _, request := range requests {
		sender, err := s.users.GetByID(request.SenderID)
		if err != nil {
			return nil, err
		}
		views = append(views, requestView(request, sender.Ref(), receiver.Ref()))
	}
	return views, nil
}

// Accept finalizes a pending request addressed to receiverID, writes
// the contact edge in both directions, and tells both sides to refresh.
func (s *ContactService) Accept(_ context.Context, requestID, receiverID int64) error {
	request, err := s.contacts.GetPending(requestID, receiverID)
	if err != nil {
		return err
	}

	if _, err := s.contacts.Resolve(request, domain.RequestAccepted); err != nil {
		return fmt.Errorf("resolve request: %w", err)
	}
	if err := s.contacts.AddEdge(request.SenderID, request.ReceiverID); err != nil {
		return fmt.Errorf("add contact edge: %w", err)
	}

	s.bus.Publish(event.ContactAccepted{
		SenderID:   request.SenderID,
		ReceiverID: request.ReceiverID,
	})
	s.log.Info("contact request accepted", "request_id", requestID)
	return nil
}

func (s *ContactService) Reject(_ context.Context, requestID, receiverID int64) error {
	request, err := s.contacts.GetPending(requestID, receiverID)
	if err != nil {
		return err
	}
	if _, err := s.contacts.Resolve(request, domain.RequestRejected); err != nil {
		return fmt.Errorf("resolve request: %w", err)
	}
	s.log.Info("contact request rejected", "request_id", requestID)
	return nil
}

func (s *ContactService) Contacts(_ context.Context, userID int64) ([]ContactView, error) {
	if _, err := s.users.GetByID(userID); err != nil {
		return nil, err
	}

	ids, err := s.contacts.ContactIDs(userID)
	if err != nil {
		return nil, err
	}

	views := make([]ContactView, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetByID(id)
		if err != nil {
			return nil, err
		}
		views = append(views, ContactView{ID: user.ID, Username: user.Username, Email: user.Email})
	}
	return views, nil
}

func (s *ContactService) AreContacts(_ context.Context, a, b int64) (bool, error) {
	return s.contacts.AreContacts(a, b)
}

func requestView(r domain.ContactRequest, sender, receiver domain.UserRef) RequestView {
	return RequestView{
		ID:        r.ID,
		Sender:    sender,
		Receiver:  receiver,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}
