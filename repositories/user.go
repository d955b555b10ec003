package repositories

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"dm-lab/domain"
	apperrors "dm-lab/errors"
)

type IUserRepository interface {
	Create(username, email, passwordHash string) (domain.User, error)
	GetByID(id int64) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
	GetByEmail(email string) (domain.User, error)
	Close() error
}

// UserRepository persists accounts in BadgerDB.
// Keys:
//
//	user:id:{20-digit id}  -> cbor(diskUser)   primary record
//	user:name:{username}   -> 8-byte id        unique index
//	user:email:{email}     -> 8-byte id        unique index
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

// diskUser is the stored shape of an account.
type diskUser struct {
	ID           int64  `cbor:"1,keyasint"`
	Username     string `cbor:"2,keyasint"`
	Email        string `cbor:"3,keyasint"`
	PasswordHash string `cbor:"4,keyasint"`
	CreatedAt    int64  `cbor:"5,keyasint"`
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 64)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the id sequence lease.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// Create persists a new account. Username and email uniqueness is
// enforced inside a single transaction.
func (u *UserRepository) Create(username, email, passwordHash string) (domain.User, error) {
	id, err := nextID(u.seq)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	value, err := cbor.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal user: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		nameKey := userNameKey(username)
		if _, err := txn.Get(nameKey); err == nil {
			return apperrors.ErrUsernameTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		emailKey := userEmailKey(email)
		if _, err := txn.Get(emailKey); err == nil {
			return apperrors.ErrEmailTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(userIDKey(id), value); err != nil {
			return err
		}
		if err := txn.Set(nameKey, encodeID(id)); err != nil {
			return err
		}
		return txn.Set(emailKey, encodeID(id))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetByID(id int64) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		found, err := readUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

func (u *UserRepository) GetByUsername(username string) (domain.User, error) {
	return u.getByIndex(userNameKey(username))
}

func (u *UserRepository) GetByEmail(email string) (domain.User, error) {
	return u.getByIndex(userEmailKey(email))
}

func (u *UserRepository) getByIndex(indexKey []byte) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if err == badger.ErrKeyNotFound {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var id int64
		if err := item.Value(func(val []byte) error {
			id = decodeID(val)
			return nil
		}); err != nil {
			return err
		}
		found, err := readUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

// readUser loads the primary record inside an open transaction.
func readUser(txn *badger.Txn, id int64) (domain.User, error) {
	item, err := txn.Get(userIDKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	var disk diskUser
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return domain.User{}, err
	}
	return toUser(disk), nil
}

func userIDKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:id:%020d", id))
}

func userNameKey(username string) []byte {
	return []byte("user:name:" + username)
}

func userEmailKey(email string) []byte {
	return []byte("user:email:" + email)
}

// nextID maps the zero-based badger sequence to ids starting at 1.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return int64(n) + 1, nil
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(val []byte) int64 {
	return int64(binary.BigEndian.Uint64(val))
}

func fromUser(u domain.User) diskUser {
	return diskUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixNano(),
	}
}

func toUser(d diskUser) domain.User {
	return domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    time.Unix(0, d.CreatedAt).UTC(),
	}
}
