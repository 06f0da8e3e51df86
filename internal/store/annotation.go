package store

import (
	"context"
	"encoding/json/v2"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/annotateapp/annotate-server/internal/domain"
	"github.com/annotateapp/annotate-server/internal/errors"
)

const annotationPrefix = "ann:"

// PutAnnotation writes an annotation record, overwriting any prior version.
// Last writer wins: record-level locking belongs to callers that need it.
func (s *Store) PutAnnotation(ctx context.Context, annotation *domain.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if annotation.ID == "" {
		return errors.Validation("annotation is missing an id")
	}

	if err := s.set([]byte(annotationPrefix+annotation.ID), annotation); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "record store write failed")
	}
	return nil
}

// GetAnnotation retrieves an annotation by ID.
func (s *Store) GetAnnotation(ctx context.Context, id string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var annotation domain.Annotation
	err := s.get([]byte(annotationPrefix+id), &annotation)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.NotFoundf("annotation %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "record store read failed")
	}
	return &annotation, nil
}

// DeleteAnnotation physically removes an annotation record.
// Deleting an absent record is not an error at this layer.
func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.delete([]byte(annotationPrefix + id)); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "record store delete failed")
	}
	return nil
}

// ListAnnotations returns every stored annotation.
// Used for index rebuilds; the result order follows key order.
func (s *Store) ListAnnotations(ctx context.Context) ([]*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var annotations []*domain.Annotation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(annotationPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var annotation domain.Annotation
				if err := json.Unmarshal(val, &annotation); err != nil {
					// Skip unreadable records rather than failing the scan.
					if s.logger != nil {
						key := string(it.Item().Key())
						s.logger.Warn("skipping unreadable annotation record",
							"id", strings.TrimPrefix(key, annotationPrefix),
							"error", err)
					}
					return nil
				}
				annotations = append(annotations, &annotation)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "record store scan failed")
	}
	return annotations, nil
}
