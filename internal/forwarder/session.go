package forwarder

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Session is the forwarder session task: spawned per upstream
// WebSocket session, it demultiplexes inbound envelopes by
// request_id/socket_id and spawns HTTP dispatch or WS-bridge subtasks
// for each. A second envelope with a request_id already in flight is
// logged and dropped, never dispatched twice.
type Session struct {
	dispatcher *Dispatcher
	upstream   Upstream
	log        *logrus.Entry

	mu           sync.Mutex
	inflightHttp map[string]struct{}
	bridges      map[string]*Bridge

	wg sync.WaitGroup
}

func NewSession(dispatcher *Dispatcher, upstream Upstream, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		dispatcher:   dispatcher,
		upstream:     upstream,
		log:          log,
		inflightHttp: map[string]struct{}{},
		bridges:      map[string]*Bridge{},
	}
}

// Wait blocks until every spawned subtask has returned, for orderly
// shutdown.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Handle dispatches one decoded envelope received from upstream.
func (s *Session) Handle(ctx context.Context, msg ProtoMessage) {
	switch msg.Kind {
	case ProtoHttpKind:
		s.handleHttp(ctx, msg)
	case ProtoWsKind:
		s.handleWs(ctx, msg)
	}
}

func (s *Session) handleHttp(ctx context.Context, msg ProtoMessage) {
	if msg.HttpMsg.Kind != HttpRequestKind {
		return
	}
	if msg.HttpMsg.IsUpgrade() {
		s.handleUpgrade(ctx, msg.RequestId, msg.HttpMsg)
		return
	}
	s.handleRequest(ctx, msg.RequestId, msg.HttpMsg)
}

func (s *Session) handleRequest(ctx context.Context, id Id, msg HttpMessage) {
	key := id.String()

	s.mu.Lock()
	if _, dup := s.inflightHttp[key]; dup {
		s.mu.Unlock()
		s.log.WithField("request_id", key).Warn("duplicate request_id for an in-flight request, dropping")
		return
	}
	s.inflightHttp[key] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflightHttp, key)
			s.mu.Unlock()
		}()

		resp, err := s.dispatcher.Dispatch(ctx, msg)
		if err != nil {
			s.log.WithError(err).WithField("request_id", key).Error("http dispatch failed")
			return
		}
		if err := s.upstream.Send(ctx, ProtoHttp(id, resp)); err != nil {
			s.log.WithError(err).WithField("request_id", key).Error("failed to send http response upstream")
		}
	}()
}

func (s *Session) handleUpgrade(ctx context.Context, id Id, msg HttpMessage) {
	if len(msg.Body) > 0 {
		s.log.WithField("request_id", id.String()).Warn("upgrade request carries a non-empty body, ignoring it")
	}

	conn, err := dialTarget(ctx, msg)
	if err != nil {
		s.log.WithError(err).WithField("request_id", id.String()).Error("websocket upgrade dial failed")
		return
	}

	raw := uuid.New()
	socketId := Id(raw[:])

	bridge := NewBridge(conn, socketId, s.upstream, s.log)

	s.mu.Lock()
	s.bridges[socketId.String()] = bridge
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bridge.Run(ctx)
		s.mu.Lock()
		delete(s.bridges, socketId.String())
		s.mu.Unlock()
	}()
}

func (s *Session) handleWs(ctx context.Context, msg ProtoMessage) {
	key := msg.SocketId.String()

	s.mu.Lock()
	bridge := s.bridges[key]
	s.mu.Unlock()

	if bridge == nil {
		s.log.WithField("socket_id", key).Warn("websocket frame for unknown socket_id, dropping")
		return
	}
	if err := bridge.Forward(msg.WsMsg); err != nil {
		s.log.WithError(err).WithField("socket_id", key).Error("failed to forward websocket frame to target")
	}
}
