package server

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/game"
	"github.com/lemunozm/asciiarena-sub000/internal/protocol"
	"github.com/lemunozm/asciiarena-sub000/internal/session"
	"github.com/lemunozm/asciiarena-sub000/internal/transport"
)

func (s *Server) handleNetwork(ev transport.Event) {
	switch e := ev.(type) {
	case transport.Connected:
		s.logger.Info("endpoint connected", zap.Stringer("endpoint", e.Endpoint))
	case transport.Disconnected:
		s.handleDisconnected(e.Endpoint)
	case transport.DecodeError:
		// Protocol violation: drop the offending connection, touch
		// nothing else.
		s.logger.Warn("undecodable data, closing endpoint",
			zap.Stringer("endpoint", e.Endpoint), zap.Error(e.Err))
		s.dropEndpoint(e.Endpoint)
	case transport.Received:
		s.handleMessage(e.Endpoint, e.Envelope)
	}
}

func (s *Server) handleMessage(ep transport.Endpoint, env protocol.Envelope) {
	if env.T == protocol.MsgVersion {
		s.handleVersion(ep, env)
		return
	}
	// The fast channel is gated by the ConnectUdp token handshake instead
	// of the version gate.
	if ep.Kind == transport.Udp {
		if env.T == protocol.MsgConnectUdp {
			s.handleConnectUdp(ep, env)
			return
		}
		s.handleGameAction(ep, env)
		return
	}
	if !s.versioned[ep] {
		s.logger.Warn("message before version handshake, dropped",
			zap.Stringer("endpoint", ep), zap.String("type", env.T))
		return
	}

	switch env.T {
	case protocol.MsgSubscribeInfo:
		s.handleSubscribeInfo(ep)
	case protocol.MsgLogin:
		s.handleLogin(ep, env)
	case protocol.MsgLogout:
		s.handleLogout(ep)
	case protocol.MsgTrustUdp:
		s.handleTrustUdp(ep)
	case protocol.MsgMove, protocol.MsgCast:
		s.handleGameAction(ep, env)
	default:
		s.logger.Warn("unexpected message type",
			zap.Stringer("endpoint", ep), zap.String("type", env.T))
	}
}

// handleVersion runs the compatibility gate. The reply always carries the
// server tag and the computed compatibility; an incompatible endpoint is
// closed right after the reply.
func (s *Server) handleVersion(ep transport.Endpoint, env protocol.Envelope) {
	msg, err := protocol.DecodePayload[protocol.Version](env)
	if err != nil {
		s.dropEndpoint(ep)
		return
	}
	compat := protocol.CheckVersion(msg.Tag, VersionTag)
	s.send(ep, protocol.MsgVersionInfo, protocol.VersionInfo{
		Tag:           VersionTag,
		Compatibility: compat,
	})
	if !compat.IsCompatible() {
		s.logger.Info("incompatible client rejected",
			zap.Stringer("endpoint", ep), zap.String("client_version", msg.Tag))
		s.dropEndpoint(ep)
		return
	}
	if compat == protocol.CompatOutdated {
		s.logger.Warn("client on outdated patch level",
			zap.Stringer("endpoint", ep), zap.String("client_version", msg.Tag))
	}
	s.versioned[ep] = true
}

func (s *Server) handleSubscribeInfo(ep transport.Endpoint) {
	s.subscribers[ep] = true
	s.send(ep, protocol.MsgStaticInfo, protocol.StaticInfo{
		UdpPort:      s.net.UdpPort(),
		Capacity:     s.cfg.Capacity,
		MapWidth:     s.cfg.MapWidth,
		MapHeight:    s.cfg.MapHeight,
		WinnerPoints: s.cfg.WinnerPoints,
		Players:      s.roster(),
	})
}

func (s *Server) handleLogin(ep transport.Endpoint, env protocol.Envelope) {
	msg, err := protocol.DecodePayload[protocol.Login](env)
	if err != nil {
		s.dropEndpoint(ep)
		return
	}
	if !protocol.ValidName(msg.Name) {
		s.send(ep, protocol.MsgLoginStatus, protocol.LoginStatus{
			Name:   msg.Name,
			Status: protocol.StatusInvalidName,
		})
		return
	}

	result := s.room.Login(msg.Name, ep)
	switch result.Code {
	case session.LoginCreated:
		s.send(ep, protocol.MsgLoginStatus, protocol.LoginStatus{
			Name:   msg.Name,
			Status: protocol.StatusLogged,
			Token:  uint64(result.Token),
			Kind:   protocol.KindFirstTime,
		})
		s.logger.Info("player logged in", zap.String("player", msg.Name))
		s.broadcastRoster()
		if s.game == nil && s.room.Len() == s.cfg.Capacity {
			// Posted through a timer so the loop never blocks on its
			// own queue.
			s.schedule(0, createGame{})
		}
	case session.LoginRecycled:
		s.send(ep, protocol.MsgLoginStatus, protocol.LoginStatus{
			Name:   msg.Name,
			Status: protocol.StatusLogged,
			Token:  uint64(result.Token),
			Kind:   protocol.KindReconnection,
		})
		s.logger.Info("player reconnected", zap.String("player", msg.Name))
		s.replayGameState(ep)
	case session.LoginAlreadyLogged:
		s.send(ep, protocol.MsgLoginStatus, protocol.LoginStatus{
			Name:   msg.Name,
			Status: protocol.StatusAlreadyLogged,
		})
	case session.LoginFull:
		s.send(ep, protocol.MsgLoginStatus, protocol.LoginStatus{
			Name:   msg.Name,
			Status: protocol.StatusPlayerLimit,
		})
	}
}

// replayGameState resynchronizes a reconnecting endpoint: the start-game
// message, the remaining countdown if one is pending, and the current arena
// if one is running.
func (s *Server) replayGameState(ep transport.Endpoint) {
	if s.game == nil {
		return
	}
	s.send(ep, protocol.MsgStartGame, protocol.StartGame{
		Players: s.roster(),
		Points:  s.game.Points(),
	})
	if s.waitingArena {
		remaining := time.Until(s.waitDeadline)
		if remaining < 0 {
			remaining = 0
		}
		s.send(ep, protocol.MsgWaitArena, protocol.WaitArena{Millis: remaining.Milliseconds()})
	}
	if arena := s.game.Arena(); arena != nil && !s.arenaScored {
		s.send(ep, protocol.MsgStartArena, s.startArenaMessage(arena))
	}
}

func (s *Server) handleLogout(ep transport.Endpoint) {
	if s.game == nil {
		if removed := s.room.RemoveByEndpoint(ep); removed != nil {
			s.logger.Info("player logged out", zap.String("player", removed.Name))
			s.broadcastRoster()
		}
		return
	}
	if sess := s.room.ByEndpoint(ep); sess != nil {
		s.logger.Info("player left running game", zap.String("player", sess.Name))
		s.room.Disconnect(sess.Token)
	}
}

func (s *Server) handleDisconnected(ep transport.Endpoint) {
	delete(s.versioned, ep)
	delete(s.subscribers, ep)
	sess := s.room.ByEndpoint(ep)
	if sess == nil {
		return
	}
	if s.game == nil {
		s.room.RemoveByEndpoint(ep)
		s.logger.Info("player connection lost, slot freed", zap.String("player", sess.Name))
		s.broadcastRoster()
		return
	}
	s.logger.Info("player connection lost, slot reserved", zap.String("player", sess.Name))
	s.room.Disconnect(sess.Token)
}

// handleConnectUdp is step 1 of the fast-channel handshake: store the
// sender's fast endpoint untrusted and echo back over it. An unknown token
// gets no reply; the client retries or times out.
func (s *Server) handleConnectUdp(ep transport.Endpoint, env protocol.Envelope) {
	msg, err := protocol.DecodePayload[protocol.ConnectUdp](env)
	if err != nil {
		s.logger.Warn("bad ConnectUdp payload", zap.Stringer("endpoint", ep), zap.Error(err))
		return
	}
	token := session.Token(msg.Token)
	if s.room.ByToken(token) == nil {
		s.logger.Warn("ConnectUdp with unknown token",
			zap.Stringer("endpoint", ep), zap.Uint64("token", msg.Token))
		return
	}
	if s.room.SetUntrustedFast(token, ep) {
		s.send(ep, protocol.MsgUdpConnected, protocol.UdpConnected{})
	}
}

// handleTrustUdp is step 2: the client confirmed over its reliable channel
// that the fast channel reached it, so the fast endpoint becomes usable for
// outbound traffic. Duplicates are no-ops.
func (s *Server) handleTrustUdp(ep transport.Endpoint) {
	sess := s.room.ByEndpoint(ep)
	if sess == nil {
		s.logger.Warn("TrustUdp from unknown endpoint", zap.Stringer("endpoint", ep))
		return
	}
	s.room.TrustFast(sess.Token)
}

// handleGameAction routes Move and Cast requests to the attached entity.
// Requests from unknown, untrusted or dead sources are logged and ignored.
func (s *Server) handleGameAction(ep transport.Endpoint, env protocol.Envelope) {
	sess := s.room.ByEndpoint(ep)
	if sess == nil {
		s.logger.Warn("game action from unknown endpoint",
			zap.Stringer("endpoint", ep), zap.String("type", env.T))
		return
	}
	if ep.Kind == transport.Udp && !sess.FastTrusted {
		s.logger.Warn("game action over untrusted fast endpoint",
			zap.String("player", sess.Name), zap.String("type", env.T))
		return
	}
	if s.game == nil || s.game.Arena() == nil {
		s.logger.Warn("game action outside an arena", zap.String("player", sess.Name))
		return
	}
	entityID, ok := s.bindings[sess.Name]
	if !ok {
		s.logger.Warn("game action without attached entity", zap.String("player", sess.Name))
		return
	}

	arena := s.game.Arena()
	var err error
	switch env.T {
	case protocol.MsgMove:
		var msg protocol.Move
		if msg, err = protocol.DecodePayload[protocol.Move](env); err == nil {
			err = arena.SetMoveIntent(entityID, game.Direction(msg.Direction))
		}
	case protocol.MsgCast:
		var msg protocol.Cast
		if msg, err = protocol.DecodePayload[protocol.Cast](env); err == nil {
			err = arena.Cast(entityID, game.Direction(msg.Direction), msg.SkillID)
		}
	default:
		s.logger.Warn("unexpected message type",
			zap.Stringer("endpoint", ep), zap.String("type", env.T))
		return
	}
	if err != nil {
		s.logger.Warn("game action rejected",
			zap.String("player", sess.Name), zap.String("type", env.T), zap.Error(err))
	}
}

// roster returns the logged player names in stable order for broadcasts.
func (s *Server) roster() []string {
	names := s.room.Names()
	sort.Strings(names)
	return names
}

func (s *Server) broadcastRoster() {
	payload := protocol.DynamicInfo{Players: s.roster()}
	for ep := range s.subscribers {
		s.send(ep, protocol.MsgDynamicInfo, payload)
	}
}

func (s *Server) send(ep transport.Endpoint, t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.logger.Error("encode failed", zap.String("type", t), zap.Error(err))
		return
	}
	if err := s.net.Send(ep, b); err != nil {
		s.logger.Debug("send failed",
			zap.Stringer("endpoint", ep), zap.String("type", t), zap.Error(err))
	}
}

func (s *Server) broadcast(eps []transport.Endpoint, t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		s.logger.Error("encode failed", zap.String("type", t), zap.Error(err))
		return
	}
	for _, ep := range eps {
		if err := s.net.Send(ep, b); err != nil {
			s.logger.Debug("broadcast send failed",
				zap.Stringer("endpoint", ep), zap.String("type", t), zap.Error(err))
		}
	}
}

func (s *Server) dropEndpoint(ep transport.Endpoint) {
	delete(s.versioned, ep)
	delete(s.subscribers, ep)
	s.net.Remove(ep)
}
