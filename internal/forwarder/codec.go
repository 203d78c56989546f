package forwarder

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers. There is no .proto file to generate from — the
// Go toolchain never runs in this build, so the wire format is
// produced and consumed directly with protowire's low-level
// primitives instead of protoc-generated bindings. The layout mirrors
// section 6 of the protocol: Message{ oneof{ http=1, ws=2 } }.
const (
	fieldMessageHttp = 1
	fieldMessageWs   = 2

	fieldHttpRequest  = 1
	fieldHttpResponse = 2

	fieldReqRequestId   = 1
	fieldReqMethod      = 2
	fieldReqPath        = 3
	fieldReqQueryString = 4
	fieldReqHeader      = 5
	fieldReqBody        = 6
	fieldReqPort        = 7

	fieldRespRequestId  = 1
	fieldRespStatusCode = 2
	fieldRespHeader     = 3
	fieldRespBody       = 4

	fieldHeaderKey   = 1
	fieldHeaderValue = 2

	fieldWsSocketId = 1
	fieldWsText     = 2
	fieldWsBinary   = 3
	fieldWsPing     = 4
	fieldWsPong     = 5
	fieldWsClose    = 6

	fieldCloseCode   = 1
	fieldCloseReason = 2
)

// Encode serialises m as the length-delimited Message envelope.
func Encode(m ProtoMessage) ([]byte, error) {
	var b []byte
	switch m.Kind {
	case ProtoHttpKind:
		httpBytes, err := encodeHttp(m.RequestId, m.HttpMsg)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldMessageHttp, protowire.BytesType)
		b = protowire.AppendBytes(b, httpBytes)
	case ProtoWsKind:
		wsBytes, err := encodeWs(m.SocketId, m.WsMsg)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldMessageWs, protowire.BytesType)
		b = protowire.AppendBytes(b, wsBytes)
	default:
		return nil, fmt.Errorf("forwarder: unknown envelope kind %d", m.Kind)
	}
	return b, nil
}

func encodeHttp(requestId Id, msg HttpMessage) ([]byte, error) {
	var inner []byte
	switch msg.Kind {
	case HttpRequestKind:
		inner = encodeRequest(requestId, msg)
		var b []byte
		b = protowire.AppendTag(b, fieldHttpRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
		return b, nil
	case HttpResponseKind:
		inner = encodeResponse(requestId, msg)
		var b []byte
		b = protowire.AppendTag(b, fieldHttpResponse, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
		return b, nil
	default:
		return nil, fmt.Errorf("forwarder: unknown http message kind %d", msg.Kind)
	}
}

func encodeRequest(requestId Id, msg HttpMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldReqRequestId, protowire.BytesType)
	b = protowire.AppendBytes(b, requestId)
	b = protowire.AppendTag(b, fieldReqMethod, protowire.BytesType)
	b = protowire.AppendString(b, msg.Method)
	b = protowire.AppendTag(b, fieldReqPath, protowire.BytesType)
	b = protowire.AppendString(b, msg.Path)
	b = protowire.AppendTag(b, fieldReqQueryString, protowire.BytesType)
	b = protowire.AppendString(b, msg.QueryString)
	b = appendHeaders(b, fieldReqHeader, msg.Headers)
	b = protowire.AppendTag(b, fieldReqBody, protowire.BytesType)
	b = protowire.AppendBytes(b, msg.Body)
	b = protowire.AppendTag(b, fieldReqPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Port))
	return b
}

func encodeResponse(requestId Id, msg HttpMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRespRequestId, protowire.BytesType)
	b = protowire.AppendBytes(b, requestId)
	b = protowire.AppendTag(b, fieldRespStatusCode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.StatusCode))
	b = appendHeaders(b, fieldRespHeader, msg.Headers)
	b = protowire.AppendTag(b, fieldRespBody, protowire.BytesType)
	b = protowire.AppendBytes(b, msg.Body)
	return b
}

// appendHeaders writes headers as repeated length-delimited
// sub-messages under fieldNum, in sorted key order so encoding is
// deterministic (useful for round-trip tests).
func appendHeaders(b []byte, fieldNum protowire.Number, headers map[string]string) []byte {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var hb []byte
		hb = protowire.AppendTag(hb, fieldHeaderKey, protowire.BytesType)
		hb = protowire.AppendString(hb, k)
		hb = protowire.AppendTag(hb, fieldHeaderValue, protowire.BytesType)
		hb = protowire.AppendString(hb, headers[k])
		b = protowire.AppendTag(b, fieldNum, protowire.BytesType)
		b = protowire.AppendBytes(b, hb)
	}
	return b
}

func encodeWs(socketId Id, msg WebSocketMessage) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldWsSocketId, protowire.BytesType)
	b = protowire.AppendBytes(b, socketId)

	switch msg.Kind {
	case WsTextKind:
		b = protowire.AppendTag(b, fieldWsText, protowire.BytesType)
		b = protowire.AppendString(b, msg.Text)
	case WsBinaryKind:
		b = protowire.AppendTag(b, fieldWsBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.Binary)
	case WsPingKind:
		b = protowire.AppendTag(b, fieldWsPing, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.Binary)
	case WsPongKind:
		b = protowire.AppendTag(b, fieldWsPong, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.Binary)
	case WsCloseKind:
		var cb []byte
		cb = protowire.AppendTag(cb, fieldCloseCode, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(msg.CloseCode))
		if msg.CloseReason != nil {
			cb = protowire.AppendTag(cb, fieldCloseReason, protowire.BytesType)
			cb = protowire.AppendString(cb, *msg.CloseReason)
		}
		b = protowire.AppendTag(b, fieldWsClose, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	default:
		return nil, fmt.Errorf("forwarder: unknown websocket message kind %d", msg.Kind)
	}
	return b, nil
}

// Decode parses a Message envelope. It returns ErrEmpty if protocol,
// inner message, or request_id/socket_id are missing or empty, and
// wraps any malformed-wire condition as a decode error.
func Decode(b []byte) (ProtoMessage, error) {
	num, typ, n, err := consumeField(b, "message")
	if err != nil {
		return ProtoMessage{}, err
	}
	if typ != protowire.BytesType {
		return ProtoMessage{}, fmt.Errorf("forwarder: decode: unexpected wire type for field %d", num)
	}
	payload, m := protowire.ConsumeBytes(b[n:])
	if m < 0 {
		return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed bytes field %d", num)
	}

	switch num {
	case fieldMessageHttp:
		return decodeHttp(payload)
	case fieldMessageWs:
		return decodeWs(payload)
	default:
		return ProtoMessage{}, ErrEmpty
	}
}

func consumeField(b []byte, what string) (protowire.Number, protowire.Type, int, error) {
	if len(b) == 0 {
		return 0, 0, 0, ErrEmpty
	}
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, 0, 0, fmt.Errorf("forwarder: decode: malformed tag in %s", what)
	}
	return num, typ, n, nil
}

func decodeHttp(b []byte) (ProtoMessage, error) {
	num, typ, n, err := consumeField(b, "http")
	if err != nil {
		return ProtoMessage{}, err
	}
	if typ != protowire.BytesType {
		return ProtoMessage{}, fmt.Errorf("forwarder: decode: unexpected wire type for http field %d", num)
	}
	payload, m := protowire.ConsumeBytes(b[n:])
	if m < 0 {
		return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed http sub-message")
	}

	switch num {
	case fieldHttpRequest:
		id, msg, err := decodeRequest(payload)
		if err != nil {
			return ProtoMessage{}, err
		}
		return ProtoHttp(id, msg), nil
	case fieldHttpResponse:
		id, msg, err := decodeResponse(payload)
		if err != nil {
			return ProtoMessage{}, err
		}
		return ProtoHttp(id, msg), nil
	default:
		return ProtoMessage{}, ErrEmpty
	}
}

func decodeRequest(b []byte) (Id, HttpMessage, error) {
	msg := HttpMessage{Kind: HttpRequestKind, Headers: map[string]string{}}
	var id Id
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed request tag")
		}
		b = b[n:]
		switch num {
		case fieldReqRequestId:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed request_id")
			}
			id = Id(v)
			b = b[m:]
		case fieldReqMethod:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed method")
			}
			msg.Method = v
			b = b[m:]
		case fieldReqPath:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed path")
			}
			msg.Path = v
			b = b[m:]
		case fieldReqQueryString:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed query_string")
			}
			msg.QueryString = v
			b = b[m:]
		case fieldReqHeader:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed header")
			}
			k, val, err := decodeHeader(v)
			if err != nil {
				return nil, HttpMessage{}, err
			}
			msg.Headers[k] = val
			b = b[m:]
		case fieldReqBody:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed body")
			}
			msg.Body = append([]byte(nil), v...)
			b = b[m:]
		case fieldReqPort:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed port")
			}
			msg.Port = uint32(v)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed unknown field %d", num)
			}
			b = b[m:]
		}
	}
	if len(id) == 0 {
		return nil, HttpMessage{}, ErrEmpty
	}
	return id, msg, nil
}

func decodeResponse(b []byte) (Id, HttpMessage, error) {
	msg := HttpMessage{Kind: HttpResponseKind, Headers: map[string]string{}}
	var id Id
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed response tag")
		}
		b = b[n:]
		switch num {
		case fieldRespRequestId:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed request_id")
			}
			id = Id(v)
			b = b[m:]
		case fieldRespStatusCode:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed status_code")
			}
			msg.StatusCode = uint32(v)
			b = b[m:]
		case fieldRespHeader:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed header")
			}
			k, val, err := decodeHeader(v)
			if err != nil {
				return nil, HttpMessage{}, err
			}
			msg.Headers[k] = val
			b = b[m:]
		case fieldRespBody:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed body")
			}
			msg.Body = append([]byte(nil), v...)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, HttpMessage{}, fmt.Errorf("forwarder: decode: malformed unknown field %d", num)
			}
			b = b[m:]
		}
	}
	if len(id) == 0 {
		return nil, HttpMessage{}, ErrEmpty
	}
	return id, msg, nil
}

func decodeHeader(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", fmt.Errorf("forwarder: decode: malformed header tag")
		}
		b = b[n:]
		switch num {
		case fieldHeaderKey:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", "", fmt.Errorf("forwarder: decode: malformed header key")
			}
			key = v
			b = b[m:]
		case fieldHeaderValue:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", "", fmt.Errorf("forwarder: decode: malformed header value")
			}
			value = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return "", "", fmt.Errorf("forwarder: decode: malformed unknown header field")
			}
			b = b[m:]
		}
	}
	return key, value, nil
}

func decodeWs(b []byte) (ProtoMessage, error) {
	msg := WebSocketMessage{}
	var socketId Id
	var kindSet bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed ws tag")
		}
		b = b[n:]
		switch num {
		case fieldWsSocketId:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed socket_id")
			}
			socketId = Id(v)
			b = b[m:]
		case fieldWsText:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed text")
			}
			msg = WsText(v)
			kindSet = true
			b = b[m:]
		case fieldWsBinary:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed binary")
			}
			msg = WsBinary(append([]byte(nil), v...))
			kindSet = true
			b = b[m:]
		case fieldWsPing:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed ping")
			}
			msg = WsPing(append([]byte(nil), v...))
			kindSet = true
			b = b[m:]
		case fieldWsPong:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed pong")
			}
			msg = WsPong(append([]byte(nil), v...))
			kindSet = true
			b = b[m:]
		case fieldWsClose:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed close")
			}
			closeMsg, err := decodeClose(v)
			if err != nil {
				return ProtoMessage{}, err
			}
			msg = closeMsg
			kindSet = true
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return ProtoMessage{}, fmt.Errorf("forwarder: decode: malformed unknown ws field %d", num)
			}
			b = b[m:]
		}
	}

	if len(socketId) == 0 || !kindSet {
		return ProtoMessage{}, ErrEmpty
	}
	return ProtoWs(socketId, msg), nil
}

func decodeClose(b []byte) (WebSocketMessage, error) {
	var code uint32 = 1000
	var reason *string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return WebSocketMessage{}, fmt.Errorf("forwarder: decode: malformed close tag")
		}
		b = b[n:]
		switch num {
		case fieldCloseCode:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return WebSocketMessage{}, fmt.Errorf("forwarder: decode: malformed close code")
			}
			code = uint32(v)
			b = b[m:]
		case fieldCloseReason:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return WebSocketMessage{}, fmt.Errorf("forwarder: decode: malformed close reason")
			}
			r := v
			reason = &r
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return WebSocketMessage{}, fmt.Errorf("forwarder: decode: malformed unknown close field")
			}
			b = b[m:]
		}
	}
	return WebSocketMessage{Kind: WsCloseKind, CloseCode: code, CloseReason: reason}, nil
}
