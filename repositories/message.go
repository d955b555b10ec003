package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"dm-lab/domain"
	apperrors "dm-lab/errors"
)

type IMessageRepository interface {
	Create(senderID, receiverID int64, body string) (domain.Message, error)
	GetByID(id int64) (domain.Message, error)
	GetOwned(id, senderID int64) (domain.Message, error)
	Update(m domain.Message) error
	Delete(id int64) error
	History(userA, userB int64, skip, limit int) ([]domain.Message, error)
	Close() error
}

// MessageRepository persists direct messages in BadgerDB.
// Keys:
//
//	msg:id:{20-digit id}                             -> cbor(diskMessage)
//	dm:{20-digit lo}:{20-digit hi}:{19-digit ns}:{20-digit id} -> 8-byte id
//
// The pair index uses zero padding so a plain forward prefix scan over
// "dm:{lo}:{hi}:" yields the conversation in chronological order; the
// trailing id disambiguates two messages stored in the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

type diskMessage struct {
	ID         int64  `cbor:"1,keyasint"`
	SenderID   int64  `cbor:"2,keyasint"`
	ReceiverID int64  `cbor:"3,keyasint"`
	Body       string `cbor:"4,keyasint"`
	Status     string `cbor:"5,keyasint"`
	CreatedAt  int64  `cbor:"6,keyasint"`
	UpdatedAt  int64  `cbor:"7,keyasint"`
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq}, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Create persists a new message with status sent and both timestamps
// set to now. The primary record and the pair index entry are written
// in one transaction.
func (m *MessageRepository) Create(senderID, receiverID int64, body string) (domain.Message, error) {
	id, err := nextID(m.seq)
	if err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Status:     domain.StatusSent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	value, err := cbor.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageIDKey(id), value); err != nil {
			return err
		}
		return txn.Set(pairKey(senderID, receiverID, now, id), encodeID(id))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (m *MessageRepository) GetByID(id int64) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := readMessage(txn, id)
		if err != nil {
			return err
		}
		msg = found
		return nil
	})
	return msg, err
}

// GetOwned retrieves a message only when senderID wrote it. An
// ownership mismatch reports the same not-found as an absent id, so
// callers cannot probe for foreign messages.
func (m *MessageRepository) GetOwned(id, senderID int64) (domain.Message, error) {
	msg, err := m.GetByID(id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.SenderID != senderID {
		return domain.Message{}, apperrors.ErrMessageNotFound
	}
	return msg, nil
}

// Update rewrites the primary record. The pair index key embeds
// CreatedAt, which never changes, so the index needs no touch.
func (m *MessageRepository) Update(msg domain.Message) error {
	value, err := cbor.Marshal(fromMessage(msg))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(messageIDKey(msg.ID)); err == badger.ErrKeyNotFound {
			return apperrors.ErrMessageNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(messageIDKey(msg.ID), value)
	})
}

// Delete destructively removes the record and its index entry.
func (m *MessageRepository) Delete(id int64) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msg, err := readMessage(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(messageIDKey(id)); err != nil {
			return err
		}
		return txn.Delete(pairKey(msg.SenderID, msg.ReceiverID, msg.CreatedAt, msg.ID))
	})
}

// History returns a chronologically ascending page of the conversation
// between userA and userB, in either direction, skipping the first
// skip entries and returning at most limit.
func (m *MessageRepository) History(userA, userB int64, skip, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := pairPrefix(userA, userB)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if limit > 0 && len(messages) == limit {
				break
			}
			var id int64
			if err := it.Item().Value(func(val []byte) error {
				id = decodeID(val)
				return nil
			}); err != nil {
				return err
			}
			msg, err := readMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

func readMessage(txn *badger.Txn, id int64) (domain.Message, error) {
	item, err := txn.Get(messageIDKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	var disk diskMessage
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk), nil
}

func messageIDKey(id int64) []byte {
	return []byte(fmt.Sprintf("msg:id:%020d", id))
}

// pairPrefix orders the two participant ids so that both directions of
// a conversation share one key range.
func pairPrefix(a, b int64) []byte {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return []byte(fmt.Sprintf("dm:%020d:%020d:", lo, hi))
}

func pairKey(senderID, receiverID int64, at time.Time, id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:%020d",
		pairPrefix(senderID, receiverID), at.UnixNano(), id))
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       msg.Body,
		Status:     string(msg.Status),
		CreatedAt:  msg.CreatedAt.UnixNano(),
		UpdatedAt:  msg.UpdatedAt.UnixNano(),
	}
}

func toMessage(d diskMessage) domain.Message {
	return domain.Message{
		ID:         d.ID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Body:       d.Body,
		Status:     domain.MessageStatus(d.Status),
		CreatedAt:  time.Unix(0, d.CreatedAt).UTC(),
		UpdatedAt:  time.Unix(0, d.UpdatedAt).UTC(),
	}
}
