package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a grpc encoding.Codec that marshals every message as
// JSON instead of protobuf wire format, so this package never needs
// .proto files or protoc-generated types. It is forced on every client
// connection via grpc.ForceCodec and registered under the "json"
// content-subtype, so a server built with plain grpc.NewServer() picks
// it for those requests; both bypass grpc's usual proto.Message
// requirement entirely.
type jsonCodec struct{}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
