// Package server exposes planning sessions over HTTP. Each session owns
// one control instance; clients pull state, so the map-surface and
// itinerary hooks are no-ops here.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bosth/ottoman-routing/internal/control"
	"github.com/bosth/ottoman-routing/internal/corpus"
	"github.com/bosth/ottoman-routing/internal/metrics"
	"github.com/bosth/ottoman-routing/internal/route"
	"github.com/bosth/ottoman-routing/internal/selection"
	"github.com/bosth/ottoman-routing/internal/viewport"
)

// DefaultSessionTTL is how long an idle session survives before the
// janitor reclaims it.
const DefaultSessionTTL = 30 * time.Minute

// ControlFactory builds a fresh control for a new session.
type ControlFactory func(ctx context.Context, surface control.MapSurface, view control.ItineraryView) (*control.Control, error)

// pollSurface discards push updates; HTTP clients read markers and the
// route through the session endpoints instead.
type pollSurface struct{}

func (pollSurface) PlaceMarker(selection.Role, corpus.Location) {}
func (pollSurface) RemoveMarker(selection.Role)                 {}
func (pollSurface) SetRoute([]route.Segment)                    {}
func (pollSurface) ClearRoute()                                 {}
func (pollSurface) EaseTo(viewport.Camera)                      {}
func (pollSurface) SetCursorHint(bool)                          {}

type pollView struct{}

func (pollView) ShowItinerary([]route.Step) {}
func (pollView) ClearItinerary()            {}

type session struct {
	ctl      *control.Control
	lastSeen time.Time
}

// Server holds the live sessions and the handlers over them.
type Server struct {
	factory ControlFactory
	met     *metrics.Collector
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	stop chan struct{}
	once sync.Once
}

// New builds a server. A nil metrics collector disables counting; a
// zero ttl falls back to DefaultSessionTTL.
func New(factory ControlFactory, met *metrics.Collector, ttl time.Duration) *Server {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Server{
		factory:  factory,
		met:      met,
		ttl:      ttl,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close stops the janitor and releases every session.
func (s *Server) Close() {
	s.once.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.ctl.Close()
		delete(s.sessions, id)
		if s.met != nil {
			s.met.ActiveSessions.Dec()
		}
	}
}

func (s *Server) createSession(ctx context.Context) (string, error) {
	ctl, err := s.factory(ctx, pollSurface{}, pollView{})
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{ctl: ctl, lastSeen: time.Now()}
	s.mu.Unlock()

	if s.met != nil {
		s.met.ActiveSessions.Inc()
	}
	return id, nil
}

func (s *Server) lookup(id string) (*control.Control, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = time.Now()
	return sess.ctl, true
}

func (s *Server) deleteSession(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.ctl.Close()
	if s.met != nil {
		s.met.ActiveSessions.Dec()
	}
	return true
}

// janitor reclaims sessions idle past the TTL.
func (s *Server) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.expire(now)
		}
	}
}

func (s *Server) expire(now time.Time) {
	var dead []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			dead = append(dead, id)
		}
	}
	s.mu.Unlock()

	for _, id := range dead {
		if s.deleteSession(id) {
			log.Printf("server: expired idle session %s", id)
		}
	}
}
