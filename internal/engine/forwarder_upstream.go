package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/agsys/edgehog-runtime/internal/forwarder"
)

// wsUpstream adapts one upstream WebSocket connection to the
// forwarder's Upstream interface: Encode the envelope, write it as a
// binary frame. Mirrors the connect/read/write loop shape of the
// teacher's cloud.Client, repointed at the forwarder's length-
// delimited binary envelopes instead of JSON Message values.
type wsUpstream struct {
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (u *wsUpstream) Send(ctx context.Context, msg forwarder.ProtoMessage) error {
	b, err := forwarder.Encode(msg)
	if err != nil {
		return fmt.Errorf("engine: encode forwarder envelope: %w", err)
	}

	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	if u.writeTimeout > 0 {
		u.conn.SetWriteDeadline(time.Now().Add(u.writeTimeout))
	}
	return u.conn.WriteMessage(websocket.BinaryMessage, b)
}

// ForwarderConfig controls the reconnecting upstream WebSocket
// session that carries remote-access forwarder traffic.
type ForwarderConfig struct {
	URL              string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
}

func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		ReconnectDelay:   5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// runForwarderLoop holds one forwarder session open for as long as ctx
// lives, reconnecting on any disconnect, the same connect-then-run-
// loops-then-reconnect shape as cloud.Client.connectionLoop.
func runForwarderLoop(ctx context.Context, cfg ForwarderConfig, dispatcher *forwarder.Dispatcher, log *logrus.Entry) {
	if cfg.URL == "" {
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
		if err != nil {
			log.WithError(err).Warn("forwarder: dial failed, retrying")
			if !sleepOrDone(ctx, cfg.ReconnectDelay) {
				return
			}
			continue
		}

		upstream := &wsUpstream{conn: conn, writeTimeout: cfg.WriteTimeout}
		session := forwarder.NewSession(dispatcher, upstream, log)

		runForwarderSession(ctx, conn, cfg.ReadTimeout, session, log)
		session.Wait()
		conn.Close()

		log.Warn("forwarder: upstream session closed, reconnecting")
		if !sleepOrDone(ctx, cfg.ReconnectDelay) {
			return
		}
	}
}

// runForwarderSession reads length-delimited binary envelopes off conn
// and hands each decoded one to the session until the connection
// drops or ctx is cancelled.
func runForwarderSession(ctx context.Context, conn *websocket.Conn, readTimeout time.Duration, session *forwarder.Session, log *logrus.Entry) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	defer close(done)

	for {
		if readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := forwarder.Decode(data)
		if err != nil {
			log.WithError(err).Warn("forwarder: dropping malformed envelope")
			continue
		}
		session.Handle(ctx, msg)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
