// Package session tracks logical players across the two transport channels.
// A session outlives its connections: a player who drops mid-game keeps the
// record (and the points attributed to it) until the game finishes.
package session

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/transport"
)

// Token identifies a logical player across reconnects.
type Token uint64

type Session struct {
	Token       Token
	Name        string
	Safe        *transport.Endpoint
	Fast        *transport.Endpoint
	FastTrusted bool
}

// Connected reports whether the session currently holds a reliable endpoint.
// A session without one is disconnected but may still be recycled.
func (s *Session) Connected() bool { return s.Safe != nil }

type LoginResultCode int

const (
	LoginCreated LoginResultCode = iota
	LoginRecycled
	LoginAlreadyLogged
	LoginFull
)

type LoginResult struct {
	Code  LoginResultCode
	Token Token
}

type Room struct {
	sessions map[Token]*Session
	capacity int
	rng      *rand.Rand
	logger   *zap.Logger
}

func NewRoom(capacity int, rng *rand.Rand, logger *zap.Logger) *Room {
	return &Room{
		sessions: make(map[Token]*Session),
		capacity: capacity,
		rng:      rng,
		logger:   logger,
	}
}

func (r *Room) Capacity() int { return r.capacity }

func (r *Room) Len() int { return len(r.sessions) }

// Login arbitrates a reliable-channel login for name. A session with the
// same name and no reliable endpoint is recycled under its original token,
// preserving points and any in-flight fast-channel handshake keyed by it.
func (r *Room) Login(name string, safe transport.Endpoint) LoginResult {
	if existing := r.ByName(name); existing != nil {
		if existing.Connected() {
			return LoginResult{Code: LoginAlreadyLogged}
		}
		existing.Safe = &safe
		return LoginResult{Code: LoginRecycled, Token: existing.Token}
	}
	if len(r.sessions) >= r.capacity {
		return LoginResult{Code: LoginFull}
	}
	token := r.mintToken()
	r.sessions[token] = &Session{Token: token, Name: name, Safe: &safe}
	return LoginResult{Code: LoginCreated, Token: token}
}

func (r *Room) mintToken() Token {
	for {
		token := Token(r.rng.Uint64())
		if token == 0 {
			continue
		}
		if _, taken := r.sessions[token]; !taken {
			return token
		}
	}
}

func (r *Room) ByToken(token Token) *Session {
	return r.sessions[token]
}

func (r *Room) ByName(name string) *Session {
	for _, s := range r.sessions {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ByEndpoint scans for a session holding ep on either channel.
func (r *Room) ByEndpoint(ep transport.Endpoint) *Session {
	for _, s := range r.sessions {
		if s.Safe != nil && *s.Safe == ep {
			return s
		}
		if s.Fast != nil && *s.Fast == ep {
			return s
		}
	}
	return nil
}

// RemoveByEndpoint fully removes the session owning ep, freeing its slot and
// name. Only valid before a game exists.
func (r *Room) RemoveByEndpoint(ep transport.Endpoint) *Session {
	s := r.ByEndpoint(ep)
	if s != nil {
		delete(r.sessions, s.Token)
	}
	return s
}

// Disconnect clears both endpoints and the trust flag but keeps the record,
// so the player can reconnect into the running game with its points intact.
func (r *Room) Disconnect(token Token) {
	s := r.sessions[token]
	if s == nil {
		r.logger.Error("disconnect for unknown session", zap.Uint64("token", uint64(token)))
		return
	}
	s.Safe = nil
	s.Fast = nil
	s.FastTrusted = false
}

// SetUntrustedFast records ep as the session's fast endpoint. The endpoint
// carries no authority until TrustFast completes the handshake.
func (r *Room) SetUntrustedFast(token Token, ep transport.Endpoint) bool {
	s := r.sessions[token]
	if s == nil {
		r.logger.Error("fast endpoint for unknown session", zap.Uint64("token", uint64(token)))
		return false
	}
	s.Fast = &ep
	s.FastTrusted = false
	return true
}

// TrustFast completes the fast-channel handshake. Idempotent.
func (r *Room) TrustFast(token Token) {
	s := r.sessions[token]
	if s == nil {
		r.logger.Error("trust for unknown session", zap.Uint64("token", uint64(token)))
		return
	}
	if s.Fast == nil {
		r.logger.Error("trust without fast endpoint", zap.String("player", s.Name))
		return
	}
	s.FastTrusted = true
}

// SafeEndpoints lists every connected session's reliable endpoint, the
// broadcast target set for control messages.
func (r *Room) SafeEndpoints() []transport.Endpoint {
	eps := make([]transport.Endpoint, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Safe != nil {
			eps = append(eps, *s.Safe)
		}
	}
	return eps
}

// FasterEndpoints lists the best endpoint per session for high-frequency
// data: the trusted fast endpoint if the handshake completed, else the
// reliable one. Sessions with neither are excluded.
func (r *Room) FasterEndpoints() []transport.Endpoint {
	eps := make([]transport.Endpoint, 0, len(r.sessions))
	for _, s := range r.sessions {
		switch {
		case s.Fast != nil && s.FastTrusted:
			eps = append(eps, *s.Fast)
		case s.Safe != nil:
			eps = append(eps, *s.Safe)
		}
	}
	return eps
}

// Names returns the logged player names in no particular order.
func (r *Room) Names() []string {
	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, s.Name)
	}
	return names
}

// Clear evicts every session. Called on game reset.
func (r *Room) Clear() {
	clear(r.sessions)
}
