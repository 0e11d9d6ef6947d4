// Package pb holds the messages and service descriptor of the order
// service. Messages are encoded in the protobuf wire format by hand and
// travel under the "matchbook" content subtype, which clients built with
// NewOrderServiceClient select automatically.
package pb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

const CodecName = "matchbook"

// Message is implemented by every request and response of the service.
type Message interface {
	MarshalWire(b []byte) []byte
	UnmarshalWire(b []byte) error
}

type wireCodec struct{}

func (wireCodec) Name() string { return CodecName }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("pb: cannot marshal %T", v)
	}
	return m.MarshalWire(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("pb: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func init() {
	encoding.RegisterCodec(wireCodec{})
}
