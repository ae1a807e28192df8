// Package store is the client's normalized entity store: cards, groups and
// connections keyed by id, with observers subscribed per (kind, id).
package store

import (
	"slices"
	"sync"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

type Kind string

const (
	KindCard       Kind = "card"
	KindGroup      Kind = "group"
	KindConnection Kind = "connection"
	KindCanvas     Kind = "canvas" // name, viewport, wholesale reloads
)

// Key addresses one entity. An empty ID subscribes to every entity of Kind.
type Key struct {
	Kind Kind
	ID   string
}

type Change struct {
	Key     Key
	Deleted bool
}

type table[T any] struct {
	byID  map[string]T
	order []string
}

func newTable[T any]() table[T] { return table[T]{byID: make(map[string]T)} }

func (t *table[T]) put(id string, v T) {
	if _, ok := t.byID[id]; !ok {
		t.order = append(t.order, id)
	}
	t.byID[id] = v
}

func (t *table[T]) del(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	return true
}

func (t *table[T]) list() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

type Store struct {
	mu       sync.RWMutex
	canvasID string
	name     string
	viewport geom.Viewport
	cards    table[canvas.Card]
	groups   table[canvas.Group]
	conns    table[canvas.Connection]

	subMu   sync.Mutex
	subs    map[Key]map[int]func(Change)
	nextSub int
}

func New() *Store {
	return &Store{
		viewport: geom.DefaultViewport(),
		cards:    newTable[canvas.Card](),
		groups:   newTable[canvas.Group](),
		conns:    newTable[canvas.Connection](),
		subs:     make(map[Key]map[int]func(Change)),
	}
}

// Subscribe registers fn for changes to key and returns the unsubscribe func.
// Callbacks run synchronously on the mutating goroutine, after the lock is released.
func (s *Store) Subscribe(key Key, fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(Change))
	}
	s.subs[key][id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[key], id)
	}
}

func (s *Store) notify(changes ...Change) {
	s.subMu.Lock()
	var fns []func(Change)
	var pending []Change
	for _, ch := range changes {
		for _, k := range []Key{ch.Key, {Kind: ch.Key.Kind}} {
			for _, fn := range s.subs[k] {
				fns = append(fns, fn)
				pending = append(pending, ch)
			}
			if ch.Key.ID == "" {
				break
			}
		}
	}
	s.subMu.Unlock()
	for i, fn := range fns {
		fn(pending[i])
	}
}

// Load replaces everything with a snapshot.
func (s *Store) Load(snap canvas.Snapshot) {
	s.mu.Lock()
	s.canvasID = snap.CanvasID
	s.name = snap.Name
	s.viewport = snap.Viewport
	if s.viewport.Zoom == 0 {
		s.viewport.Zoom = 1
	}
	s.cards = newTable[canvas.Card]()
	s.groups = newTable[canvas.Group]()
	s.conns = newTable[canvas.Connection]()
	for _, c := range snap.Cards {
		s.cards.put(c.ID, c)
	}
	for _, g := range snap.Groups {
		s.groups.put(g.ID, g)
	}
	for _, c := range snap.Connections {
		s.conns.put(c.ID, c.Clone())
	}
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindCanvas}}, Change{Key: Key{Kind: KindCard}},
		Change{Key: Key{Kind: KindGroup}}, Change{Key: Key{Kind: KindConnection}})
}

func (s *Store) Snapshot() canvas.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := s.conns.list()
	for i := range conns {
		conns[i] = conns[i].Clone()
	}
	return canvas.Snapshot{
		CanvasID:    s.canvasID,
		Name:        s.name,
		Cards:       s.cards.list(),
		Groups:      s.groups.list(),
		Connections: conns,
		Viewport:    s.viewport,
	}
}

// Index builds a spatial view of the current state.
func (s *Store) Index(layout geom.Layout) *containment.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containment.NewIndex(s.cards.list(), s.groups.list(), layout)
}

func (s *Store) CanvasID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvasID
}

func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Store) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindCanvas}})
}

func (s *Store) Viewport() geom.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

func (s *Store) SetViewport(v geom.Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindCanvas}})
}

func (s *Store) Card(id string) (canvas.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards.byID[id]
	return c, ok
}

func (s *Store) Cards() []canvas.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cards.list()
}

func (s *Store) PutCard(c canvas.Card) {
	s.mu.Lock()
	s.cards.put(c.ID, c)
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindCard, ID: c.ID}})
}

func (s *Store) DeleteCard(id string) bool {
	s.mu.Lock()
	ok := s.cards.del(id)
	s.mu.Unlock()
	if ok {
		s.notify(Change{Key: Key{Kind: KindCard, ID: id}, Deleted: true})
	}
	return ok
}

func (s *Store) Group(id string) (canvas.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups.byID[id]
	return g, ok
}

func (s *Store) Groups() []canvas.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups.list()
}

func (s *Store) PutGroup(g canvas.Group) {
	s.mu.Lock()
	s.groups.put(g.ID, g)
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindGroup, ID: g.ID}})
}

func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	ok := s.groups.del(id)
	s.mu.Unlock()
	if ok {
		s.notify(Change{Key: Key{Kind: KindGroup, ID: id}, Deleted: true})
	}
	return ok
}

func (s *Store) Connection(id string) (canvas.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns.byID[id]
	return c.Clone(), ok
}

func (s *Store) Connections() []canvas.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.conns.list()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

func (s *Store) PutConnection(c canvas.Connection) {
	s.mu.Lock()
	s.conns.put(c.ID, c.Clone())
	s.mu.Unlock()
	s.notify(Change{Key: Key{Kind: KindConnection, ID: c.ID}})
}

func (s *Store) DeleteConnection(id string) bool {
	s.mu.Lock()
	ok := s.conns.del(id)
	s.mu.Unlock()
	if ok {
		s.notify(Change{Key: Key{Kind: KindConnection, ID: id}, Deleted: true})
	}
	return ok
}
