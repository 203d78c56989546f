// Package properties implements the Upstream Client (M): the opaque
// message-bus sender the OTA Router and the resource reconciler push
// property updates and OTA events through. The concrete transport
// (gRPC, reusing this runtime's existing cloud-connection idiom) is a
// collaborator concern the core treats as opaque, but a real
// implementation has to exist somewhere — this package is it.
package properties

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireMessage is the minimal contract the rawproto codec needs: any
// message sent or received over the properties gRPC connection.
type wireMessage interface {
	Marshal() []byte
	Unmarshal([]byte) error
}

const (
	fieldPropSetInterface = 1
	fieldPropSetPath      = 2
	fieldPropSetBool      = 3
	fieldPropSetString    = 4

	fieldPropUnsetInterface = 1
	fieldPropUnsetPath      = 2

	fieldOtaEventRequestUUID = 1
	fieldOtaEventStatus      = 2
	fieldOtaEventStatusCode  = 3
	fieldOtaEventProgress    = 4
	fieldOtaEventMessage     = 5
)

// PropertySet carries one send(interface, path, value) call. value is
// either a bool (images/networks/volumes/deployments) or a string
// (containers), matching the external interface in spec section 6.
type PropertySet struct {
	Interface string
	Path      string

	HasBool  bool
	BoolVal  bool
	HasStr   bool
	StrVal   string
}

func newPropertySet(iface, path string, value any) (*PropertySet, error) {
	p := &PropertySet{Interface: iface, Path: path}
	switch v := value.(type) {
	case bool:
		p.HasBool, p.BoolVal = true, v
	case string:
		p.HasStr, p.StrVal = true, v
	default:
		return nil, fmt.Errorf("properties: unsupported value type %T for %s%s", value, iface, path)
	}
	return p, nil
}

func (p *PropertySet) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPropSetInterface, protowire.BytesType)
	b = protowire.AppendString(b, p.Interface)
	b = protowire.AppendTag(b, fieldPropSetPath, protowire.BytesType)
	b = protowire.AppendString(b, p.Path)
	if p.HasBool {
		b = protowire.AppendTag(b, fieldPropSetBool, protowire.VarintType)
		v := uint64(0)
		if p.BoolVal {
			v = 1
		}
		b = protowire.AppendVarint(b, v)
	}
	if p.HasStr {
		b = protowire.AppendTag(b, fieldPropSetString, protowire.BytesType)
		b = protowire.AppendString(b, p.StrVal)
	}
	return b
}

func (p *PropertySet) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("properties: malformed PropertySet tag")
		}
		b = b[n:]
		switch num {
		case fieldPropSetInterface:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed interface")
			}
			p.Interface = v
			b = b[m:]
		case fieldPropSetPath:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed path")
			}
			p.Path = v
			b = b[m:]
		case fieldPropSetBool:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed bool value")
			}
			p.HasBool, p.BoolVal = true, v != 0
			b = b[m:]
		case fieldPropSetString:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed string value")
			}
			p.HasStr, p.StrVal = true, v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("properties: malformed unknown field %d", num)
			}
			b = b[m:]
		}
	}
	return nil
}

// PropertyUnset carries one unset(interface, path) call.
type PropertyUnset struct {
	Interface string
	Path      string
}

func (p *PropertyUnset) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPropUnsetInterface, protowire.BytesType)
	b = protowire.AppendString(b, p.Interface)
	b = protowire.AppendTag(b, fieldPropUnsetPath, protowire.BytesType)
	b = protowire.AppendString(b, p.Path)
	return b
}

func (p *PropertyUnset) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("properties: malformed PropertyUnset tag")
		}
		b = b[n:]
		switch num {
		case fieldPropUnsetInterface:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed interface")
			}
			p.Interface = v
			b = b[m:]
		case fieldPropUnsetPath:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed path")
			}
			p.Path = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("properties: malformed unknown field %d", num)
			}
			b = b[m:]
		}
	}
	return nil
}

// OtaEventWire mirrors ota.OtaEvent for wire transport, kept as a
// separate type so this package doesn't need to import internal/ota
// just to shuttle bytes around.
type OtaEventWire struct {
	RequestUUID    string
	Status         string
	StatusCode     string
	StatusProgress uint32
	Message        string
}

func (e *OtaEventWire) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldOtaEventRequestUUID, protowire.BytesType)
	b = protowire.AppendString(b, e.RequestUUID)
	b = protowire.AppendTag(b, fieldOtaEventStatus, protowire.BytesType)
	b = protowire.AppendString(b, e.Status)
	b = protowire.AppendTag(b, fieldOtaEventStatusCode, protowire.BytesType)
	b = protowire.AppendString(b, e.StatusCode)
	b = protowire.AppendTag(b, fieldOtaEventProgress, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.StatusProgress))
	b = protowire.AppendTag(b, fieldOtaEventMessage, protowire.BytesType)
	b = protowire.AppendString(b, e.Message)
	return b
}

func (e *OtaEventWire) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("properties: malformed OtaEventWire tag")
		}
		b = b[n:]
		switch num {
		case fieldOtaEventRequestUUID:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed requestUUID")
			}
			e.RequestUUID = v
			b = b[m:]
		case fieldOtaEventStatus:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed status")
			}
			e.Status = v
			b = b[m:]
		case fieldOtaEventStatusCode:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed statusCode")
			}
			e.StatusCode = v
			b = b[m:]
		case fieldOtaEventProgress:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed statusProgress")
			}
			e.StatusProgress = uint32(v)
			b = b[m:]
		case fieldOtaEventMessage:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("properties: malformed message")
			}
			e.Message = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("properties: malformed unknown field %d", num)
			}
			b = b[m:]
		}
	}
	return nil
}

// Ack is the empty acknowledgement reply every unary call expects.
type Ack struct{}

func (a *Ack) Marshal() []byte          { return nil }
func (a *Ack) Unmarshal(b []byte) error { return nil }
