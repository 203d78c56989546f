package properties

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawprotoCodecName is the content-subtype selected via
// grpc.CallContentSubtype on every Invoke in this package. There is no
// .proto file to generate a standard codec from (the Go toolchain
// never runs in this build), so messages marshal themselves directly
// with protowire instead of going through the default proto codec.
const rawprotoCodecName = "rawproto"

type rawprotoCodec struct{}

func (rawprotoCodec) Name() string { return rawprotoCodecName }

func (rawprotoCodec) Marshal(v interface{}) ([]byte, error) {
	msg, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("properties: %T does not implement wireMessage", v)
	}
	return msg.Marshal(), nil
}

func (rawprotoCodec) Unmarshal(data []byte, v interface{}) error {
	msg, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("properties: %T does not implement wireMessage", v)
	}
	return msg.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(rawprotoCodec{})
}
