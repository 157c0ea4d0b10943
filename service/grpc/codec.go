package grpc

import (
	"encoding/json"
	"google.golang.org/grpc/encoding"
)

// codecName is the content subtype requests are sent with.
const codecName = "json"

// jsonCodec lets the control service run without generated protobuf code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
