package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/workflow"
)

// =============================================================================
// 🗄️ Badger StatusStore
// =============================================================================

// BadgerStore persists snapshots in an embedded badger database.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
	ttl    time.Duration
	logger *zap.Logger
}

// BadgerOptions 嵌入式存储配置
type BadgerOptions struct {
	Path     string
	InMemory bool
	Prefix   string
	TTL      time.Duration
}

// OpenBadger opens (or creates) the database at opts.Path.
func OpenBadger(opts BadgerOptions, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{
		db:     db,
		prefix: []byte(opts.Prefix),
		ttl:    opts.TTL,
		logger: logger.With(zap.String("component", "badger_status_store")),
	}, nil
}

func (s *BadgerStore) key(id string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(id))
	k = append(k, s.prefix...)
	return append(k, id...)
}

// Put replaces the snapshot for wf.ID.
func (s *BadgerStore) Put(_ context.Context, wf *workflow.Workflow) error {
	data, err := encode(wf)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(s.key(wf.ID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger put workflow %s: %w", wf.ID, err)
	}
	return nil
}

// Get returns the snapshot for id.
func (s *BadgerStore) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, workflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get workflow %s: %w", id, err)
	}
	return decode(data)
}

// List returns all snapshots ordered by creation time.
func (s *BadgerStore) List(_ context.Context) ([]*workflow.Workflow, error) {
	var out []*workflow.Workflow
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			wf, err := decode(data)
			if err != nil {
				s.logger.Warn("skipping undecodable snapshot",
					zap.ByteString("key", it.Item().KeyCopy(nil)), zap.Error(err))
				continue
			}
			out = append(out, wf)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list workflows: %w", err)
	}
	if out == nil {
		out = []*workflow.Workflow{}
	}
	workflow.SortByCreated(out)
	return out, nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
