package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"dm-lab/domain"
	"dm-lab/domain/event"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

// captureBus records published events for assertions.
type captureBus struct {
	events []event.DomainEvent
}

func (b *captureBus) Publish(e event.DomainEvent) {
	b.events = append(b.events, e)
}

type chatFixture struct {
	users    repositories.IUserRepository
	contacts repositories.IContactRepository
	messages repositories.IMessageRepository
	bus      *captureBus
	service  *ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users, err := repositories.NewUserRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = users.Close() })

	contacts, err := repositories.NewContactRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = contacts.Close() })

	messages, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() { _ = messages.Close() })

	bus := &captureBus{}
	return &chatFixture{
		users:    users,
		contacts: contacts,
		messages: messages,
		bus:      bus,
		service:  NewChatService(slog.Default(), users, contacts, messages, bus),
	}
}

// seedUser registers an account directly in the store.
func (f *chatFixture) seedUser(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := f.users.Create(username, username+"@example.com", "hash")
	require.NoError(t, err)
	return user
}

func (f *chatFixture) connect(t *testing.T, a, b domain.User) {
	t.Helper()
	require.NoError(t, f.contacts.AddEdge(a.ID, b.ID))
}

func Test_Send_Between_Contacts(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// Given two mutual contacts
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	f.connect(t, alice, bob)

	// When alice sends a message with surrounding whitespace
	view, err := f.service.Send(ctx, "alice", "bob", "  hello bob  ")
	req.NoError(err)

	// Then the message is trimmed, persisted as sent, and one event
	// was published after the write
	req.Equal("hello bob", view.Message)
	req.Equal(domain.StatusSent, view.Status)
	req.Equal(alice.Ref(), view.Sender)
	req.Equal(bob.Ref(), view.Receiver)

	stored, err := f.messages.GetByID(view.ID)
	req.NoError(err)
	req.Equal("hello bob", stored.Body)

	req.Len(f.bus.events, 1)
	sent, ok := f.bus.events[0].(event.MessageSent)
	req.True(ok)
	req.Equal(view.ID, sent.Message.ID)
	req.Equal("alice", sent.Sender.Username)
}

func Test_Send_Rejected_For_Non_Contacts(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	f.seedUser(t, "alice")
	f.seedUser(t, "bob")

	// When two users without an edge try to exchange a message
	_, err := f.service.Send(ctx, "alice", "bob", "hello")
	req.ErrorIs(err, apperrors.ErrNotContacts)

	// Then nothing was persisted and nothing published
	req.Empty(f.bus.events)
	history, err := f.messages.History(1, 2, 0, 0)
	req.NoError(err)
	req.Empty(history)
}

func Test_Send_Validation(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	f.connect(t, alice, bob)

	// Whitespace-only bodies are empty
	_, err := f.service.Send(ctx, "alice", "bob", "   ")
	req.ErrorIs(err, apperrors.ErrEmptyMessage)

	// Over 1000 runes is too long, counted in runes not bytes
	_, err = f.service.Send(ctx, "alice", "bob", strings.Repeat("é", domain.MaxMessageLength+1))
	req.ErrorIs(err, apperrors.ErrMessageTooLong)

	// Exactly at the cap passes
	_, err = f.service.Send(ctx, "alice", "bob", strings.Repeat("é", domain.MaxMessageLength))
	req.NoError(err)

	// Unknown participants resolve to role-specific errors
	_, err = f.service.Send(ctx, "ghost", "bob", "hi")
	req.ErrorIs(err, apperrors.ErrSenderNotFound)
	_, err = f.service.Send(ctx, "alice", "ghost", "hi")
	req.ErrorIs(err, apperrors.ErrReceiverNotFound)
}

func Test_Edit_Own_Message(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	f.connect(t, alice, bob)

	sent, err := f.service.Send(ctx, "alice", "bob", "first")
	req.NoError(err)
	f.bus.events = nil

	// When the author edits it
	edited, err := f.service.Edit(ctx, sent.ID, alice.ID, "  second  ")
	req.NoError(err)
	req.Equal("second", edited.Message)
	req.True(edited.UpdatedAt.After(edited.CreatedAt) || edited.UpdatedAt.Equal(edited.CreatedAt))

	req.Len(f.bus.events, 1)
	evt, ok := f.bus.events[0].(event.MessageEdited)
	req.True(ok)
	req.Equal("second", evt.NewBody)
	req.Equal(bob.ID, evt.ReceiverID)

	// The receiver cannot edit someone else's message
	_, err = f.service.Edit(ctx, sent.ID, bob.ID, "hijack")
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}

func Test_Delete_Own_Message_Publishes_Before_Removal(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	f.connect(t, alice, bob)

	sent, err := f.service.Send(ctx, "alice", "bob", "ephemeral")
	req.NoError(err)
	f.bus.events = nil

	req.NoError(f.service.Delete(ctx, sent.ID, alice.ID))

	// The event still carries both participant ids
	req.Len(f.bus.events, 1)
	evt, ok := f.bus.events[0].(event.MessageDeleted)
	req.True(ok)
	req.Equal(sent.ID, evt.MessageID)
	req.Equal(alice.ID, evt.SenderID)
	req.Equal(bob.ID, evt.ReceiverID)

	_, err = f.messages.GetByID(sent.ID)
	req.ErrorIs(err, apperrors.ErrMessageNotFound)

	// Deleting foreign or gone messages is not found
	req.ErrorIs(f.service.Delete(ctx, sent.ID, alice.ID), apperrors.ErrMessageNotFound)
}

func Test_History_Paging_And_Access(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	clara := f.seedUser(t, "clara")
	f.connect(t, alice, bob)

	for _, body := range []string{"one", "two", "three", "four", "five"} {
		_, err := f.service.Send(ctx, "alice", "bob", body)
		req.NoError(err)
	}

	// Page 1 of 2 is full, so more is reported
	page, err := f.service.History(ctx, "alice", "bob", alice.ID, 1, 2)
	req.NoError(err)
	req.Len(page.Messages, 2)
	req.Equal("one", page.Messages[0].Message)
	req.Equal("two", page.Messages[1].Message)
	req.True(page.HasMore)

	// The last partial page reports no more
	page, err = f.service.History(ctx, "alice", "bob", bob.ID, 3, 2)
	req.NoError(err)
	req.Len(page.Messages, 1)
	req.Equal("five", page.Messages[0].Message)
	req.False(page.HasMore)

	// Out-of-range paging inputs fall back to defaults
	page, err = f.service.History(ctx, "alice", "bob", alice.ID, 0, 0)
	req.NoError(err)
	req.Len(page.Messages, 5)

	// A third party cannot read the conversation
	_, err = f.service.History(ctx, "alice", "bob", clara.ID, 1, 10)
	req.ErrorIs(err, apperrors.ErrNotParticipant)
}
