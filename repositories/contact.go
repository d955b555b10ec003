package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"dm-lab/domain"
	apperrors "dm-lab/errors"
)

type IContactRepository interface {
	CreateRequest(senderID, receiverID int64) (domain.ContactRequest, error)
	PendingForReceiver(receiverID int64) ([]domain.ContactRequest, error)
	GetPending(requestID, receiverID int64) (domain.ContactRequest, error)
	Resolve(request domain.ContactRequest, status domain.RequestStatus) (domain.ContactRequest, error)
	AddEdge(a, b int64) error
	AreContacts(a, b int64) (bool, error)
	ContactIDs(userID int64) ([]int64, error)
	Close() error
}

// ContactRepository persists contact requests and the undirected
// contact edges they produce.
// Keys:
//
//	creq:id:{20-digit id}                    -> cbor(diskRequest)
//	creq:recv:{20-digit receiver}:{20-digit id} -> 8-byte id   pending only
//	creq:pair:{20-digit sender}:{20-digit receiver} -> 8-byte id  pending only
//	contact:{20-digit user}:{20-digit other} -> unix nanos     both directions
//
// The recv and pair entries exist only while a request is pending, so
// the pending list and the duplicate guard are plain point/prefix
// reads with no status filtering.
type ContactRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

type diskRequest struct {
	ID         int64  `cbor:"1,keyasint"`
	SenderID   int64  `cbor:"2,keyasint"`
	ReceiverID int64  `cbor:"3,keyasint"`
	Status     string `cbor:"4,keyasint"`
	CreatedAt  int64  `cbor:"5,keyasint"`
	UpdatedAt  int64  `cbor:"6,keyasint"`
}

func NewContactRepository(db *badger.DB) (*ContactRepository, error) {
	seq, err := db.GetSequence([]byte("seq:creq"), 64)
	if err != nil {
		return nil, fmt.Errorf("contact request sequence: %w", err)
	}
	return &ContactRepository{db: db, seq: seq}, nil
}

func (c *ContactRepository) Close() error {
	return c.seq.Release()
}

// CreateRequest stores a new pending request. A still-pending request
// for the same directed pair is a conflict.
func (c *ContactRepository) CreateRequest(senderID, receiverID int64) (domain.ContactRequest, error) {
	id, err := nextID(c.seq)
	if err != nil {
		return domain.ContactRequest{}, err
	}

	now := time.Now().UTC()
	request := domain.ContactRequest{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	value, err := cbor.Marshal(fromRequest(request))
	if err != nil {
		return domain.ContactRequest{}, fmt.Errorf("marshal request: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		guard := requestPairKey(senderID, receiverID)
		if _, err := txn.Get(guard); err == nil {
			return apperrors.ErrRequestPending
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(requestIDKey(id), value); err != nil {
			return err
		}
		if err := txn.Set(requestRecvKey(receiverID, id), encodeID(id)); err != nil {
			return err
		}
		return txn.Set(guard, encodeID(id))
	})
	if err != nil {
		return domain.ContactRequest{}, err
	}
	return request, nil
}

// PendingForReceiver lists requests still awaiting the receiver's
// decision, oldest first.
func (c *ContactRepository) PendingForReceiver(receiverID int64) ([]domain.ContactRequest, error) {
	var requests []domain.ContactRequest
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("creq:recv:%020d:", receiverID))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id int64
			if err := it.Item().Value(func(val []byte) error {
				id = decodeID(val)
				return nil
			}); err != nil {
				return err
			}
			request, err := readRequest(txn, id)
			if err != nil {
				return err
			}
			requests = append(requests, request)
		}
		return nil
	})
	return requests, err
}

// GetPending loads a request only when it is still pending and
// addressed to receiverID; anything else is not found.
func (c *ContactRepository) GetPending(requestID, receiverID int64) (domain.ContactRequest, error) {
	var request domain.ContactRequest
	err := c.db.View(func(txn *badger.Txn) error {
		found, err := readRequest(txn, requestID)
		if err != nil {
			return err
		}
		if found.ReceiverID != receiverID || found.Status != domain.RequestPending {
			return apperrors.ErrRequestNotFound
		}
		request = found
		return nil
	})
	return request, err
}

// Resolve finalizes a pending request and removes the pending-only
// index entries.
func (c *ContactRepository) Resolve(request domain.ContactRequest, status domain.RequestStatus) (domain.ContactRequest, error) {
	request.Status = status
	request.UpdatedAt = time.Now().UTC()

	value, err := cbor.Marshal(fromRequest(request))
	if err != nil {
		return domain.ContactRequest{}, fmt.Errorf("marshal request: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(requestIDKey(request.ID), value); err != nil {
			return err
		}
		if err := txn.Delete(requestRecvKey(request.ReceiverID, request.ID)); err != nil {
			return err
		}
		return txn.Delete(requestPairKey(request.SenderID, request.ReceiverID))
	})
	if err != nil {
		return domain.ContactRequest{}, err
	}
	return request, nil
}

// AddEdge stores the undirected contact relation as two directed keys
// so that listing a user's contacts is a single prefix scan.
func (c *ContactRepository) AddEdge(a, b int64) error {
	now := encodeID(time.Now().UnixNano())
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(a, b), now); err != nil {
			return err
		}
		return txn.Set(edgeKey(b, a), now)
	})
}

// AreContacts is the contact relationship oracle: true only for users
// currently joined by an edge.
func (c *ContactRepository) AreContacts(a, b int64) (bool, error) {
	var connected bool
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(edgeKey(a, b))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		connected = true
		return nil
	})
	return connected, err
}

// ContactIDs lists the ids of everyone userID is connected to.
func (c *ContactRepository) ContactIDs(userID int64) ([]int64, error) {
	var ids []int64
	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("contact:%020d:", userID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var other int64
			if _, err := fmt.Sscanf(string(it.Item().Key()[len(prefixStr):]), "%d", &other); err != nil {
				return err
			}
			ids = append(ids, other)
		}
		return nil
	})
	return ids, err
}

func readRequest(txn *badger.Txn, id int64) (domain.ContactRequest, error) {
	item, err := txn.Get(requestIDKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.ContactRequest{}, apperrors.ErrRequestNotFound
	}
	if err != nil {
		return domain.ContactRequest{}, err
	}
	var disk diskRequest
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return domain.ContactRequest{}, err
	}
	return toRequest(disk), nil
}

func requestIDKey(id int64) []byte {
	return []byte(fmt.Sprintf("creq:id:%020d", id))
}

func requestRecvKey(receiverID, id int64) []byte {
	return []byte(fmt.Sprintf("creq:recv:%020d:%020d", receiverID, id))
}

func requestPairKey(senderID, receiverID int64) []byte {
	return []byte(fmt.Sprintf("creq:pair:%020d:%020d", senderID, receiverID))
}

func edgeKey(a, b int64) []byte {
	return []byte(fmt.Sprintf("contact:%020d:%020d", a, b))
}

func fromRequest(r domain.ContactRequest) diskRequest {
	return diskRequest{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.UnixNano(),
		UpdatedAt:  r.UpdatedAt.UnixNano(),
	}
}

func toRequest(d diskRequest) domain.ContactRequest {
	return domain.ContactRequest{
		ID:         d.ID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Status:     domain.RequestStatus(d.Status),
		CreatedAt:  time.Unix(0, d.CreatedAt).UTC(),
		UpdatedAt:  time.Unix(0, d.UpdatedAt).UTC(),
	}
}
