package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/domain/event"
	apperrors "dm-lab/errors"
	"dm-lab/observability"
	"dm-lab/repositories"
)

type IChatService interface {
	Send(ctx context.Context, senderUsername, receiverUsername, body string) (MessageView, error)
	SendFrom(ctx context.Context, sender domain.UserRef, receiverUsername, body string) (MessageView, error)
	Edit(ctx context.Context, messageID, requestingUserID int64, newBody string) (MessageView, error)
	Delete(ctx context.Context, messageID, requestingUserID int64) error
	History(ctx context.Context, userAUsername, userBUsername string, requestingUserID int64, page, limit int) (HistoryPage, error)
	GetByID(ctx context.Context, id int64) (domain.Message, error)
}

// MessageView is a message with both participants resolved to their
// public identities, the shape every surface returns.
type MessageView struct {
	ID        int64                `json:"id"`
	Sender    domain.UserRef       `json:"sender"`
	Receiver  domain.UserRef       `json:"receiver"`
	Message   string               `json:"message"`
	Status    domain.MessageStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type HistoryPage struct {
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"hasMore"`
}

// ChatService is the delivery pipeline: validate, resolve, contact
// gate, persist, then publish. Persistence strictly precedes the
// event; a failed write publishes nothing.
type ChatService struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	contacts repositories.IContactRepository
	messages repositories.IMessageRepository
	bus      contract.EventBus
}

func NewChatService(log *slog.Logger, users repositories.IUserRepository,
	contacts repositories.IContactRepository, messages repositories.IMessageRepository,
	bus contract.EventBus) *ChatService {
	return &ChatService{log: log, users: users, contacts: contacts, messages: messages, bus: bus}
}

// Send is the synchronous request path: both usernames are resolved
// through the user store.
func (s *ChatService) Send(_ context.Context, senderUsername, receiverUsername, body string) (MessageView, error) {
	sender, err := s.users.GetByUsername(senderUsername)
	if err != nil {
		return MessageView{}, apperrors.ErrSenderNotFound
	}
	return s.deliver(sender.Ref(), receiverUsername, body)
}

// SendFrom is the session path: the sender identity comes from the
// already-authenticated session, not a lookup.
func (s *ChatService) SendFrom(_ context.Context, sender domain.UserRef, receiverUsername, body string) (MessageView, error) {
	return s.deliver(sender, receiverUsername, body)
}

func (s *ChatService) deliver(sender domain.UserRef, receiverUsername, body string) (MessageView, error) {
	body, err := validBody(body)
	if err != nil {
		return MessageView{}, err
	}

	receiver, err := s.users.GetByUsername(receiverUsername)
	if err != nil {
		return MessageView{}, apperrors.ErrReceiverNotFound
	}

	// The contact gate runs on every send regardless of entry path, so
	// an online non-contact can never reach another user's session.
	connected, err := s.contacts.AreContacts(sender.ID, receiver.ID)
	if err != nil {
		return MessageView{}, fmt.Errorf("contact check: %w", err)
	}
	if !connected {
		return MessageView{}, apperrors.ErrNotContacts
	}

	msg, err := s.messages.Create(sender.ID, receiver.ID, body)
	if err != nil {
		return MessageView{}, fmt.Errorf("persist message: %w", err)
	}
	observability.MessagesPersisted.Inc()

	s.bus.Publish(event.MessageSent{
		Message:  msg,
		Sender:   sender,
		Receiver: receiver.Ref(),
	})

	s.log.Info("message sent",
		"message_id", msg.ID, "sender_id", sender.ID, "receiver_id", receiver.ID)
	return view(msg, sender, receiver.Ref()), nil
}

// Edit updates the body of a message the requester sent. Ownership is
// enforced by the owned-read predicate: a foreign message id behaves
// exactly like an unknown one.
func (s *ChatService) Edit(_ context.Context, messageID, requestingUserID int64, newBody string) (MessageView, error) {
	newBody, err := validBody(newBody)
	if err != nil {
		return MessageView{}, err
	}

	msg, err := s.messages.GetOwned(messageID, requestingUserID)
	if err != nil {
		return MessageView{}, err
	}

	msg.Body = newBody
	msg.UpdatedAt = time.Now().UTC()
	if err := s.messages.Update(msg); err != nil {
		return MessageView{}, fmt.Errorf("update message: %w", err)
	}

	s.bus.Publish(event.MessageEdited{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		NewBody:    msg.Body,
	})

	sender, receiver, err := s.participants(msg)
	if err != nil {
		return MessageView{}, err
	}
	return view(msg, sender, receiver), nil
}

// Delete destroys a message the requester sent. The event is published
// before the destructive delete so listeners still see both
// participant ids.
func (s *ChatService) Delete(_ context.Context, messageID, requestingUserID int64) error {
	msg, err := s.messages.GetOwned(messageID, requestingUserID)
	if err != nil {
		return err
	}

	s.bus.Publish(event.MessageDeleted{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
	})

	if err := s.messages.Delete(messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	s.log.Info("message deleted", "message_id", messageID, "user_id", requestingUserID)
	return nil
}

// History returns one ascending page of the conversation between two
// users. The requester must be one of them.
func (s *ChatService) History(_ context.Context, userAUsername, userBUsername string, requestingUserID int64, page, limit int) (HistoryPage, error) {
	userA, err := s.users.GetByUsername(userAUsername)
	if err != nil {
		return HistoryPage{}, apperrors.ErrUserNotFound
	}
	userB, err := s.users.GetByUsername(userBUsername)
	if err != nil {
		return HistoryPage{}, apperrors.ErrUserNotFound
	}
	if requestingUserID != userA.ID && requestingUserID != userB.ID {
		return HistoryPage{}, apperrors.ErrNotParticipant
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	messages, err := s.messages.History(userA.ID, userB.ID, (page-1)*limit, limit)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("load history: %w", err)
	}

	refs := map[int64]domain.UserRef{userA.ID: userA.Ref(), userB.ID: userB.Ref()}
	views := lo.Map(messages, func(msg domain.Message, _ int) MessageView {
		return view(msg, refs[msg.SenderID], refs[msg.ReceiverID])
	})

	// hasMore is approximate on purpose: a final page holding exactly
	// limit rows still reports more.
	return HistoryPage{Messages: views, HasMore: len(messages) == limit}, nil
}

func (s *ChatService) GetByID(_ context.Context, id int64) (domain.Message, error) {
	return s.messages.GetByID(id)
}

func (s *ChatService) participants(msg domain.Message) (domain.UserRef, domain.UserRef, error) {
	sender, err := s.users.GetByID(msg.SenderID)
	if err != nil {
		return domain.UserRef{}, domain.UserRef{}, err
	}
	receiver, err := s.users.GetByID(msg.ReceiverID)
	if err != nil {
		return domain.UserRef{}, domain.UserRef{}, err
	}
	return sender.Ref(), receiver.Ref(), nil
}

// validBody trims the body and enforces the non-empty / max-length
// rules shared by send and edit.
func validBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > domain.MaxMessageLength {
		return "", apperrors.ErrMessageTooLong
	}
	return body, nil
}

func view(msg domain.Message, sender, receiver domain.UserRef) MessageView {
	return MessageView{
		ID:        msg.ID,
		Sender:    sender,
		Receiver:  receiver,
		Message:   msg.Body,
		Status:    msg.Status,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
}
