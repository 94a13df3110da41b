package listcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// BadgerStore 本地持久化缓存 (默认后端)
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger 打开磁盘上的 badger；path 为空时使用内存模式
func OpenBadger(path string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log: logOrNop(log).Sugar()})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return out, err
}

func (s *BadgerStore) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// badgerLogger 把 badger 的日志接到 zap，并降一级 (badger 的 Info 很吵)
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Debugf(f, v...) }

func logOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
