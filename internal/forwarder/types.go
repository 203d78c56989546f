// Package forwarder implements the remote-access forwarder protocol
// codec: translation between a length-delimited protobuf envelope
// carrying HTTP and WebSocket frames, and in-memory request/response/
// frame values, plus the HTTP-upgrade-to-WebSocket bridge that drives
// a local HTTP client and a local WebSocket connection on the target's
// behalf.
package forwarder

import (
	"encoding/hex"
	"errors"
)

// ErrEmpty is returned when an Id is constructed from empty bytes, or
// when a decoded envelope is missing its protocol, its inner message,
// or carries an empty request_id/socket_id.
var ErrEmpty = errors.New("forwarder: empty id or message")

// ErrWrongWsFrame reports a raw (non-Close/Text/Binary/Ping/Pong)
// WebSocket frame on the wire. The codec must never emit one; seeing
// one on decode is a protocol violation.
var ErrWrongWsFrame = errors.New("forwarder: wrong websocket frame kind")

// Id is a non-empty byte string whose display form is lower-case hex.
type Id []byte

// NewId rejects empty byte strings.
func NewId(b []byte) (Id, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	return Id(b), nil
}

func (id Id) String() string {
	return hex.EncodeToString(id)
}

// HttpMessageKind discriminates the HttpMessage variants.
type HttpMessageKind int

const (
	HttpRequestKind HttpMessageKind = iota
	HttpResponseKind
)

// HttpMessage is the Request|Response tagged variant carried inside a
// Http envelope.
type HttpMessage struct {
	Kind HttpMessageKind

	// Request fields.
	Method      string
	Path        string
	QueryString string
	Port        uint32

	// Response fields.
	StatusCode uint32

	// Shared.
	Headers map[string]string
	Body    []byte
}

func HttpRequest(method, path, query string, headers map[string]string, body []byte, port uint32) HttpMessage {
	return HttpMessage{Kind: HttpRequestKind, Method: method, Path: path, QueryString: query, Headers: headers, Body: body, Port: port}
}

func HttpResponse(statusCode uint32, headers map[string]string, body []byte) HttpMessage {
	return HttpMessage{Kind: HttpResponseKind, StatusCode: statusCode, Headers: headers, Body: body}
}

// IsUpgrade reports whether a Request carries an Upgrade: websocket
// header (case-insensitive value match, as the spec requires).
func (m HttpMessage) IsUpgrade() bool {
	if m.Kind != HttpRequestKind {
		return false
	}
	for k, v := range m.Headers {
		if equalFoldASCII(k, "upgrade") && equalFoldASCII(v, "websocket") {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// WebSocketMessageKind discriminates the WebSocketMessage variants.
type WebSocketMessageKind int

const (
	WsTextKind WebSocketMessageKind = iota
	WsBinaryKind
	WsPingKind
	WsPongKind
	WsCloseKind
)

// WebSocketMessage is the Text|Binary|Ping|Pong|Close tagged variant.
type WebSocketMessage struct {
	Kind WebSocketMessageKind

	Text   string
	Binary []byte

	CloseCode   uint32
	CloseReason *string // nil means Option::None
}

func WsText(s string) WebSocketMessage     { return WebSocketMessage{Kind: WsTextKind, Text: s} }
func WsBinary(b []byte) WebSocketMessage   { return WebSocketMessage{Kind: WsBinaryKind, Binary: b} }
func WsPing(b []byte) WebSocketMessage     { return WebSocketMessage{Kind: WsPingKind, Binary: b} }
func WsPong(b []byte) WebSocketMessage     { return WebSocketMessage{Kind: WsPongKind, Binary: b} }

// WsClose builds a Close frame. A nil reason round-trips to the
// default { code: 1000, reason: None }.
func WsClose(code uint32, reason *string) WebSocketMessage {
	if reason == nil {
		return WebSocketMessage{Kind: WsCloseKind, CloseCode: 1000}
	}
	return WebSocketMessage{Kind: WsCloseKind, CloseCode: code, CloseReason: reason}
}

// ProtoMessageKind discriminates the two envelope variants.
type ProtoMessageKind int

const (
	ProtoHttpKind ProtoMessageKind = iota
	ProtoWsKind
)

// ProtoMessage is the top-level decoded envelope.
type ProtoMessage struct {
	Kind ProtoMessageKind

	RequestId Id
	HttpMsg   HttpMessage

	SocketId Id
	WsMsg    WebSocketMessage
}

func ProtoHttp(requestId Id, msg HttpMessage) ProtoMessage {
	return ProtoMessage{Kind: ProtoHttpKind, RequestId: requestId, HttpMsg: msg}
}

func ProtoWs(socketId Id, msg WebSocketMessage) ProtoMessage {
	return ProtoMessage{Kind: ProtoWsKind, SocketId: socketId, WsMsg: msg}
}
