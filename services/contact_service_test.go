package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"dm-lab/domain"
	"dm-lab/domain/event"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

type contactFixture struct {
	users    repositories.IUserRepository
	contacts repositories.IContactRepository
	bus      *captureBus
	service  *ContactService
}

func newContactFixture(t *testing.T) *contactFixture {
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

	bus := &captureBus{}
	return &contactFixture{
		users:    users,
		contacts: contacts,
		bus:      bus,
		service:  NewContactService(slog.Default(), users, contacts, bus),
	}
}

func (f *contactFixture) seedUser(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := f.users.Create(username, username+"@example.com", "hash")
	require.NoError(t, err)
	return user
}

func Test_SendRequest_Notifies_Receiver(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	view, err := f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.Equal(domain.RequestPending, view.Status)
	req.Equal(alice.Ref(), view.Sender)
	req.Equal(bob.Ref(), view.Receiver)

	req.Len(f.bus.events, 1)
	evt, ok := f.bus.events[0].(event.ContactRequestSent)
	req.True(ok)
	req.Equal(view.ID, evt.Request.ID)
	req.Equal("alice", evt.Sender.Username)
}

func Test_SendRequest_Guards(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	// Self-requests are rejected before any lookup
	_, err := f.service.SendRequest(ctx, alice.ID, alice.ID)
	req.ErrorIs(err, apperrors.ErrSelfRequest)

	// Unknown receiver
	_, err = f.service.SendRequest(ctx, alice.ID, 99)
	req.ErrorIs(err, apperrors.ErrUserNotFound)

	// A still-pending duplicate is a conflict
	_, err = f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)
	_, err = f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.ErrorIs(err, apperrors.ErrRequestPending)

	// Existing contacts cannot re-request
	req.NoError(f.contacts.AddEdge(alice.ID, bob.ID))
	_, err = f.service.SendRequest(ctx, bob.ID, alice.ID)
	req.ErrorIs(err, apperrors.ErrAlreadyContacts)
}

func Test_Accept_Creates_Mutual_Contact(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	sent, err := f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)
	f.bus.events = nil

	// When the addressee accepts
	req.NoError(f.service.Accept(ctx, sent.ID, bob.ID))

	// Then both directions are contacts and both sides were told
	connected, err := f.service.AreContacts(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.True(connected)
	connected, err = f.service.AreContacts(ctx, bob.ID, alice.ID)
	req.NoError(err)
	req.True(connected)

	req.Len(f.bus.events, 1)
	evt, ok := f.bus.events[0].(event.ContactAccepted)
	req.True(ok)
	req.Equal(alice.ID, evt.SenderID)
	req.Equal(bob.ID, evt.ReceiverID)

	// The request is no longer actionable
	req.ErrorIs(f.service.Accept(ctx, sent.ID, bob.ID), apperrors.ErrRequestNotFound)
}

func Test_Accept_Requires_Being_The_Addressee(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	sent, err := f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)

	// The sender cannot accept their own request
	req.ErrorIs(f.service.Accept(ctx, sent.ID, alice.ID), apperrors.ErrRequestNotFound)

	connected, err := f.service.AreContacts(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.False(connected)
}

func Test_Reject_Leaves_No_Contact(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	sent, err := f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)
	f.bus.events = nil

	req.NoError(f.service.Reject(ctx, sent.ID, bob.ID))

	// Rejection is silent and creates no edge
	req.Empty(f.bus.events)
	connected, err := f.service.AreContacts(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.False(connected)

	// And the sender may try again later
	_, err = f.service.SendRequest(ctx, alice.ID, bob.ID)
	req.NoError(err)
}

func Test_Pending_And_Contact_Listings(t *testing.T) {
	req := require.New(t)
	f := newContactFixture(t)
	ctx := context.Background()

	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	clara := f.seedUser(t, "clara")

	_, err := f.service.SendRequest(ctx, alice.ID, clara.ID)
	req.NoError(err)
	fromBob, err := f.service.SendRequest(ctx, bob.ID, clara.ID)
	req.NoError(err)

	// Clara sees both pending requests with resolved senders
	pending, err := f.service.PendingRequests(ctx, clara.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"},
		lo.Map(pending, func(v RequestView, _ int) string { return v.Sender.Username }))

	// Accepting one leaves the other pending
	req.NoError(f.service.Accept(ctx, fromBob.ID, clara.ID))
	pending, err = f.service.PendingRequests(ctx, clara.ID)
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal("alice", pending[0].Sender.Username)

	// And the contact list reflects the new edge on both sides
	contacts, err := f.service.Contacts(ctx, clara.ID)
	req.NoError(err)
	req.Len(contacts, 1)
	req.Equal("bob", contacts[0].Username)

	contacts, err = f.service.Contacts(ctx, bob.ID)
	req.NoError(err)
	req.Len(contacts, 1)
	req.Equal("clara", contacts[0].Username)
}
