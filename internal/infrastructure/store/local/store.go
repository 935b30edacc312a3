// Package local implements the single-table store on an embedded Badger
// database. It backs the local stage and the test suites; the on-disk layout
// keeps every index entry in the same Badger transaction as its item.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"learnplatform/internal/infrastructure/store"
)

const (
	maxConflictRetries = 5
	maxTransactItems   = 100
)

type Options struct {
	// Path of the database directory; empty means in-memory.
	Path   string
	Logger *zap.Logger
}

type Store struct {
	db  *badger.DB
	log *zap.Logger
}

var _ store.Store = (*Store)(nil)

func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithLogger(badgerLogger{log.Sugar()}).
		WithLoggingLevel(badger.WARNING)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var item store.Item
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = load(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (s *Store) Put(ctx context.Context, p store.Put) error {
	_, err := s.write(ctx, store.WriteOp{Put: &p}, -1)
	return err
}

func (s *Store) Update(ctx context.Context, u store.Update) (store.Item, error) {
	return s.write(ctx, store.WriteOp{Update: &u}, -1)
}

func (s *Store) Delete(ctx context.Context, d store.Delete) error {
	_, err := s.write(ctx, store.WriteOp{Delete: &d}, -1)
	return err
}

func (s *Store) Transact(ctx context.Context, ops ...store.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > maxTransactItems {
		return fmt.Errorf("transaction has %d writes, limit is %d", len(ops), maxTransactItems)
	}
	return s.retry(ctx, func(txn *badger.Txn) error {
		seen := make(map[store.Key]struct{}, len(ops))
		planned := make([]change, 0, len(ops))
		for i, op := range ops {
			key, err := opKey(op)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if _, dup := seen[key]; dup {
				return fmt.Errorf("op %d: key %s/%s written twice in one transaction", i, key.PK, key.SK)
			}
			seen[key] = struct{}{}
			c, err := plan(txn, op, i)
			if err != nil {
				return err
			}
			planned = append(planned, c)
		}
		for _, c := range planned {
			if err := c.apply(txn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Item, error) {
	if q.PK == "" {
		return nil, errors.New("query requires a partition key")
	}
	prefix := partitionPrefix(q.Index, q.PK, q.SKPrefix)
	var out []store.Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = q.Descending
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if q.Descending {
			start = append(slices.Clone(prefix), 0xFF)
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var item store.Item
			if q.Index == store.Primary {
				item, err = decodeItem(val)
			} else {
				item, err = resolve(txn, val)
			}
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			out = append(out, item)
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) write(ctx context.Context, op store.WriteOp, index int) (store.Item, error) {
	var result store.Item
	err := s.retry(ctx, func(txn *badger.Txn) error {
		c, err := plan(txn, op, index)
		if err != nil {
			return err
		}
		result = c.next
		return c.apply(txn)
	})
	return result, err
}

// retry reruns fn when Badger reports a write conflict with a concurrent
// transaction.
func (s *Store) retry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			s.log.Debug("badger write conflict, retrying", zap.Int("attempt", attempt))
			continue
		}
		return err
	}
}

type change struct {
	key     store.Key
	current store.Item
	next    store.Item
}

func opKey(op store.WriteOp) (store.Key, error) {
	var key store.Key
	switch {
	case op.Put != nil:
		key = store.KeyOf(op.Put.Item)
	case op.Update != nil:
		key = op.Update.Key
	case op.Delete != nil:
		key = op.Delete.Key
	default:
		return key, errors.New("empty write op")
	}
	return key, validateKey(key)
}

// plan loads the current item, checks the op's conditions and computes the
// resulting item without writing anything.
func plan(txn *badger.Txn, op store.WriteOp, index int) (change, error) {
	key, err := opKey(op)
	if err != nil {
		return change{}, err
	}
	current, err := load(txn, key)
	if err != nil {
		return change{}, err
	}
	c := change{key: key, current: current}
	failed := &store.ConditionError{Op: index}

	switch {
	case op.Put != nil:
		if !conditionHolds(op.Put.Cond, current) {
			return c, failed
		}
		c.next = op.Put.Item
	case op.Update != nil:
		if !conditionHolds(op.Update.Cond, current) {
			return c, failed
		}
		ok, err := guardsHold(op.Update.Guards, current)
		if err != nil {
			return c, err
		}
		if !ok {
			return c, failed
		}
		if c.next, err = applyUpdate(current, op.Update); err != nil {
			return c, err
		}
	case op.Delete != nil:
		if !conditionHolds(op.Delete.Cond, current) {
			return c, failed
		}
	}
	return c, nil
}

func (c change) apply(txn *badger.Txn) error {
	newIdx := indexKeys(c.next)
	for _, k := range indexKeys(c.current) {
		if !slices.ContainsFunc(newIdx, func(n []byte) bool { return bytes.Equal(n, k) }) {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
	}
	if c.next == nil {
		if c.current == nil {
			return nil
		}
		return txn.Delete(itemKey(c.key))
	}
	data, err := encodeItem(c.next)
	if err != nil {
		return err
	}
	if err := txn.Set(itemKey(c.key), data); err != nil {
		return err
	}
	primary := encodePrimary(c.key)
	for _, k := range newIdx {
		if err := txn.Set(k, primary); err != nil {
			return err
		}
	}
	return nil
}

func load(txn *badger.Txn, key store.Key) (store.Item, error) {
	entry, err := txn.Get(itemKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item store.Item
	err = entry.Value(func(val []byte) error {
		item, err = decodeItem(val)
		return err
	})
	return item, err
}

func resolve(txn *badger.Txn, primary []byte) (store.Item, error) {
	key, err := decodePrimary(primary)
	if err != nil {
		return nil, err
	}
	return load(txn, key)
}

// badgerLogger routes Badger's internal logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
