// Package memory provides the default in-process cache.Store.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/troca-app/troca-go/cache"
)

type entry struct {
	key   string
	stamp time.Time
	value []byte
}

// Store is a mutex-guarded map with optional LRU bounding. Every entry
// carries the timestamp of its last write; staleness is evaluated against a
// caller-supplied max age on read.
type Store struct {
	opts    Options
	mu      sync.Mutex
	ll      *list.List
	entries map[string]*list.Element
}

func NewStore(opts Options) *Store {
	return &Store{
		opts:    opts.withDefaults(),
		ll:      list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (s *Store) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	ent := el.Value.(*entry)
	if maxAge > 0 && s.opts.Clock().Sub(ent.stamp) >= maxAge {
		s.removeLocked(el)
		return nil, cache.ErrNotFound
	}
	s.ll.MoveToFront(el)
	return append([]byte(nil), ent.value...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.stamp = s.opts.Clock()
		ent.value = append([]byte(nil), value...)
		s.ll.MoveToFront(el)
		return nil
	}

	el := s.ll.PushFront(&entry{key: key, stamp: s.opts.Clock(), value: append([]byte(nil), value...)})
	s.entries[key] = el

	if s.opts.MaxEntries > 0 && s.ll.Len() > s.opts.MaxEntries {
		if oldest := s.ll.Back(); oldest != nil {
			s.removeLocked(oldest)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return cache.ErrNotFound
	}
	s.removeLocked(el)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll.Init()
	s.entries = make(map[string]*list.Element)
	return nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len(), nil
}

func (s *Store) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	s.ll.Remove(el)
	delete(s.entries, ent.key)
}
