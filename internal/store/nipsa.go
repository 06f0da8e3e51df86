package store

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/annotateapp/annotate-server/internal/errors"
)

const nipsaPrefix = "nipsa:"

// The suppression list is a presence-only key-set: a nipsa:<user> key
// existing means that user's content is hidden from everyone else.
// No history is kept; flagging twice is a no-op.

// FlagUser adds a user to the suppression list.
func (s *Store) FlagUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return errors.Validation("user id cannot be empty")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(nipsaPrefix+userID), nil)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "suppression store write failed")
	}
	return nil
}

// UnflagUser removes a user from the suppression list.
func (s *Store) UnflagUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.delete([]byte(nipsaPrefix + userID)); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "suppression store delete failed")
	}
	return nil
}

// IsUserFlagged reports whether the user has a suppression entry.
func (s *Store) IsUserFlagged(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	flagged, err := s.exists([]byte(nipsaPrefix + userID))
	if err != nil {
		return false, errors.Wrap(err, errors.CodeUnavailable, "suppression store read failed")
	}
	return flagged, nil
}

// ListFlaggedUsers returns every user ID on the suppression list.
func (s *Store) ListFlaggedUsers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var users []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nipsaPrefix)
		opts.PrefetchValues = false // Keys only

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			users = append(users, strings.TrimPrefix(key, nipsaPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "suppression store scan failed")
	}
	return users, nil
}
