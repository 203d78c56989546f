package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func deadlineNow() time.Time {
	return time.Now().Add(5 * time.Second)
}

// Upstream is the forwarder's outbound half: encoding and sending a
// ProtoMessage over the upstream WebSocket session. It is the
// forwarder-facing slice of whatever owns that connection.
type Upstream interface {
	Send(ctx context.Context, msg ProtoMessage) error
}

var wsDialer = websocket.Dialer{}

// dialTarget opens a WebSocket to the local target named by an
// upgrade request, with sec-websocket-extensions stripped.
func dialTarget(ctx context.Context, msg HttpMessage) (*websocket.Conn, error) {
	header := http.Header{}
	for k, v := range stripUpgradeHeaders(msg.Headers) {
		header.Set(k, v)
	}
	conn, _, err := wsDialer.DialContext(ctx, wsTargetURL(msg), header)
	if err != nil {
		return nil, fmt.Errorf("forwarder: ws dial %s: %w", msg.Path, err)
	}
	return conn, nil
}

// Bridge pumps frames between one local target WebSocket connection
// and the upstream session, keyed by socketId.
type Bridge struct {
	conn     *websocket.Conn
	socketId Id
	upstream Upstream
	log      *logrus.Entry
}

func NewBridge(conn *websocket.Conn, socketId Id, upstream Upstream, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{conn: conn, socketId: socketId, upstream: upstream, log: log.WithField("socket_id", socketId.String())}
}

// Run reads frames from the target connection until it closes or ctx
// is cancelled, forwarding each as a WebSocket envelope upstream.
func (b *Bridge) Run(ctx context.Context) {
	defer b.conn.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		typ, data, err := b.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				reason := closeErr.Text
				b.send(ctx, WsClose(uint32(closeErr.Code), &reason))
			}
			return
		}

		msg, ok := fromGorillaFrame(typ, data)
		if !ok {
			b.log.Warn("dropping raw websocket frame, must never be emitted by this codec")
			continue
		}
		b.send(ctx, msg)
	}
}

func (b *Bridge) send(ctx context.Context, msg WebSocketMessage) {
	if err := b.upstream.Send(ctx, ProtoWs(b.socketId, msg)); err != nil {
		b.log.WithError(err).Error("failed to forward websocket frame upstream")
	}
}

// Forward writes a frame received upstream for this socketId to the
// target connection.
func (b *Bridge) Forward(msg WebSocketMessage) error {
	typ, data, err := toGorillaFrame(msg)
	if err != nil {
		return err
	}
	if msg.Kind == WsCloseKind {
		return b.conn.WriteControl(websocket.CloseMessage, data, deadlineNow())
	}
	return b.conn.WriteMessage(typ, data)
}

func fromGorillaFrame(typ int, data []byte) (WebSocketMessage, bool) {
	switch typ {
	case websocket.TextMessage:
		return WsText(string(data)), true
	case websocket.BinaryMessage:
		return WsBinary(data), true
	case websocket.PingMessage:
		return WsPing(data), true
	case websocket.PongMessage:
		return WsPong(data), true
	default:
		return WebSocketMessage{}, false
	}
}

func toGorillaFrame(msg WebSocketMessage) (int, []byte, error) {
	switch msg.Kind {
	case WsTextKind:
		return websocket.TextMessage, []byte(msg.Text), nil
	case WsBinaryKind:
		return websocket.BinaryMessage, msg.Binary, nil
	case WsPingKind:
		return websocket.PingMessage, msg.Binary, nil
	case WsPongKind:
		return websocket.PongMessage, msg.Binary, nil
	case WsCloseKind:
		reason := ""
		if msg.CloseReason != nil {
			reason = *msg.CloseReason
		}
		return websocket.CloseMessage, websocket.FormatCloseMessage(int(msg.CloseCode), reason), nil
	default:
		return 0, nil, ErrWrongWsFrame
	}
}
