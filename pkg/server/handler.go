package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/NicolasHaas/roomchat/pkg/model"
	"github.com/NicolasHaas/roomchat/pkg/protocol"
)

const (
	joinNotice  = "User %s has joined the room."
	leaveNotice = "User %s has left the room."
)

// handleConn runs the session state machine for one connection until the
// peer goes away or the server shuts down.
func (s *Server) handleConn(slot int, conn net.Conn) {
	defer s.handlers.Done()

	remote := remoteAddr(conn)
	s.metrics.ActiveConnections.Add(1)
	slog.Info("client connected", "remote", remote, "slot", slot)
	defer s.disconnect(slot, remote)

	// Message loop
	for {
		frame, err := protocol.ReadFrame(conn, s.cfg.BufferSize)
		if err != nil {
			if errors.Is(err, protocol.ErrConnectionClosed) || isClosedErr(err) {
				return
			}
			slog.Warn("read error", "remote", remote, "slot", slot, "err", err)
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			s.metrics.ProtocolErrors.Add(1)
			slog.Warn("bad frame", "remote", remote, "slot", slot, "err", err)
			s.reply(conn, protocol.NewErrorMessage(protocol.StatusInternalError, "Unknown message type"))
			continue
		}

		s.handleMessage(slot, conn, msg)
	}
}

// disconnect announces the departure to the session's room and frees its slot.
func (s *Server) disconnect(slot int, remote string) {
	sess, _ := s.registry.Get(slot)
	s.registry.Remove(slot)
	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)
	slog.Info("client disconnected", "remote", remote, "slot", slot, "user", sess.Username)

	if sess.RoomID != "" && s.running.Load() {
		s.broadcaster.Broadcast(sess.RoomID, model.SystemUsername, fmt.Sprintf(leaveNotice, sess.Username))
	}
}

// handleMessage dispatches a decoded frame to the appropriate handler.
func (s *Server) handleMessage(slot int, conn net.Conn, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.AuthRequest:
		s.handleAuth(slot, conn, m)

	case *protocol.RegisterRequest:
		s.handleRegister(slot, conn, m)

	case *protocol.CreateRoomRequest:
		s.handleCreateRoom(slot, conn, m)

	case *protocol.JoinRoomRequest:
		s.handleJoinRoom(slot, conn, m)

	case *protocol.LeaveRoomRequest:
		s.handleLeaveRoom(slot, conn)

	case *protocol.ChatMessage:
		s.handleChatMessage(slot, conn, m)

	default:
		// Responses and errors are server-to-client only.
		s.metrics.ProtocolErrors.Add(1)
		slog.Warn("unexpected message from client", "slot", slot, "type", msg.Type())
		s.reply(conn, protocol.NewErrorMessage(protocol.StatusInternalError, "Unknown message type"))
	}
}

func (s *Server) handleAuth(slot int, conn net.Conn, req *protocol.AuthRequest) {
	sess, ok := s.registry.Get(slot)
	if !ok {
		return
	}
	if sess.Authenticated {
		s.reply(conn, protocol.NewAuthResponse(protocol.StatusSuccess))
		return
	}

	valid, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		slog.Error("authenticate failed", "slot", slot, "user", req.Username, "err", err)
		s.reply(conn, protocol.NewAuthResponse(protocol.StatusInternalError))
		return
	}
	if !valid {
		s.metrics.FailedAuths.Add(1)
		slog.Info("authentication rejected", "slot", slot, "user", req.Username)
		s.reply(conn, protocol.NewAuthResponse(protocol.StatusAuthFailed))
		return
	}

	userID, err := s.store.GetUserID(req.Username)
	if err != nil {
		slog.Error("lookup user id failed", "slot", slot, "user", req.Username, "err", err)
		s.reply(conn, protocol.NewAuthResponse(protocol.StatusInternalError))
		return
	}

	s.registry.SetAuthenticated(slot, userID, req.Username)
	s.metrics.SuccessfulAuths.Add(1)
	slog.Info("client authenticated", "slot", slot, "user", req.Username)
	s.reply(conn, protocol.NewAuthResponse(protocol.StatusSuccess))
}

func (s *Server) handleRegister(slot int, conn net.Conn, req *protocol.RegisterRequest) {
	userID, err := s.store.RegisterUser(req.Username, req.Password)
	switch {
	case errors.Is(err, model.ErrUserExists):
		slog.Info("registration rejected: user exists", "slot", slot, "user", req.Username)
		s.reply(conn, protocol.NewRegisterResponse(protocol.StatusUserExists))
	case err != nil:
		slog.Warn("registration failed", "slot", slot, "user", req.Username, "err", err)
		s.reply(conn, protocol.NewRegisterResponse(protocol.StatusInternalError))
	default:
		s.metrics.Registrations.Add(1)
		slog.Info("user registered", "slot", slot, "user", req.Username, "id", userID)
		s.reply(conn, protocol.NewRegisterResponse(protocol.StatusSuccess))
	}
}

func (s *Server) handleCreateRoom(slot int, conn net.Conn, req *protocol.CreateRoomRequest) {
	sess, ok := s.requireAuth(slot, conn, "create a room")
	if !ok {
		return
	}

	roomID, err := s.store.CreateRoom(req.RoomName, sess.UserID)
	if err != nil {
		slog.Warn("create room failed", "slot", slot, "user", sess.Username, "name", req.RoomName, "err", err)
		s.reply(conn, protocol.NewCreateRoomResponse(protocol.StatusInternalError, ""))
		return
	}
	s.metrics.RoomsCreated.Add(1)
	slog.Info("room created", "slot", slot, "user", sess.Username, "room", roomID, "name", req.RoomName)

	s.enterRoom(sess, conn, roomID, req.RoomName, protocol.NewCreateRoomResponse(protocol.StatusSuccess, roomID))
}

func (s *Server) handleJoinRoom(slot int, conn net.Conn, req *protocol.JoinRoomRequest) {
	sess, ok := s.requireAuth(slot, conn, "join a room")
	if !ok {
		return
	}

	// Verify room exists before leaving the current one
	name, err := s.store.GetRoomName(req.RoomID)
	if errors.Is(err, model.ErrRoomNotFound) {
		slog.Info("join rejected: room not found", "slot", slot, "user", sess.Username, "room", req.RoomID)
		s.reply(conn, protocol.NewJoinRoomResponse(protocol.StatusRoomNotFound, "", req.RoomID))
		return
	}
	if err != nil {
		slog.Error("lookup room failed", "slot", slot, "room", req.RoomID, "err", err)
		s.reply(conn, protocol.NewJoinRoomResponse(protocol.StatusInternalError, "", req.RoomID))
		return
	}

	resp := protocol.NewJoinRoomResponse(protocol.StatusSuccess, name, req.RoomID)
	if sess.RoomID == req.RoomID {
		s.reply(conn, resp)
		return
	}
	s.enterRoom(sess, conn, req.RoomID, name, resp)
}

func (s *Server) handleLeaveRoom(slot int, conn net.Conn) {
	sess, ok := s.requireAuth(slot, conn, "leave a room")
	if !ok {
		return
	}
	s.leaveRoom(sess)
}

func (s *Server) handleChatMessage(slot int, conn net.Conn, chat *protocol.ChatMessage) {
	sess, ok := s.requireAuth(slot, conn, "send messages")
	if !ok {
		return
	}
	if !sess.InRoom(chat.RoomID) {
		s.reply(conn, protocol.NewErrorMessage(protocol.StatusRoomNotFound, "You are not in this room"))
		return
	}

	// The sender name always comes from the session.
	s.metrics.ChatMessages.Add(1)
	s.broadcaster.Broadcast(sess.RoomID, sess.Username, chat.Text)
}

// requireAuth returns the session snapshot, or replies with an auth-required
// error when the session has not logged in yet.
func (s *Server) requireAuth(slot int, conn net.Conn, action string) (Session, bool) {
	sess, ok := s.registry.Get(slot)
	if !ok {
		return Session{}, false
	}
	if !sess.Authenticated {
		s.reply(conn, protocol.NewErrorMessage(protocol.StatusAuthFailed, "You must be logged in to "+action))
		return Session{}, false
	}
	return sess, true
}

// enterRoom moves a session into a room: the previous room is told about the
// departure, the reply is sent, then the new room is told about the arrival.
func (s *Server) enterRoom(sess Session, conn net.Conn, roomID, roomName string, reply protocol.Message) {
	s.leaveRoom(sess)

	updated, ok := s.registry.SetRoom(sess.Slot, roomID, roomName)
	if !ok {
		return
	}
	s.metrics.RoomJoins.Add(1)
	slog.Info("user joined room", "slot", sess.Slot, "user", updated.Username, "room", roomID, "name", roomName)

	s.reply(conn, reply)
	s.broadcaster.Broadcast(roomID, model.SystemUsername, fmt.Sprintf(joinNotice, updated.Username))
}

// leaveRoom announces the departure to the room, the leaver included, and
// clears the session's room. It does nothing outside a room.
func (s *Server) leaveRoom(sess Session) {
	if sess.RoomID == "" {
		return
	}
	s.broadcaster.Broadcast(sess.RoomID, model.SystemUsername, fmt.Sprintf(leaveNotice, sess.Username))
	s.registry.ClearRoom(sess.Slot)
	s.metrics.RoomLeaves.Add(1)
	slog.Info("user left room", "slot", sess.Slot, "user", sess.Username, "room", sess.RoomID)
}

// reply sends a response frame. A failed write ends the session on its next read.
func (s *Server) reply(conn net.Conn, msg protocol.Message) {
	if err := protocol.Send(conn, msg); err != nil {
		slog.Debug("reply failed", "remote", remoteAddr(conn), "type", msg.Type(), "err", err)
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
