package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the frame every message travels in, in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Codec turns envelopes into websocket frames and back. Payload structs carry
// only json tags; the msgpack codec reads the same tags.
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are sent with.
	FrameType() int
	Encode(env Envelope) ([]byte, error)
	// DecodeEnvelope splits a frame into its type and undecoded data.
	DecodeEnvelope(frame []byte) (string, []byte, error)
	DecodeData(raw []byte, v any) error
}

// CodecFor picks a codec by name. Unknown names fall back to JSON.
func CodecFor(name string) Codec {
	if name == "msgpack" {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

type JSONCodec struct{}

func (JSONCodec) Name() string   { return "json" }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSONCodec) DecodeEnvelope(frame []byte) (string, []byte, error) {
	var in struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &in); err != nil {
		return "", nil, fmt.Errorf("decode json envelope: %w", err)
	}
	return in.Type, in.Data, nil
}

func (JSONCodec) DecodeData(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return "msgpack" }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) DecodeEnvelope(frame []byte) (string, []byte, error) {
	var in struct {
		Type string             `json:"type"`
		Data msgpack.RawMessage `json:"data"`
	}
	if err := newMsgpackDecoder(frame).Decode(&in); err != nil {
		return "", nil, fmt.Errorf("decode msgpack envelope: %w", err)
	}
	return in.Type, in.Data, nil
}

func (MsgpackCodec) DecodeData(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return newMsgpackDecoder(raw).Decode(v)
}

func newMsgpackDecoder(b []byte) *msgpack.Decoder {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec
}
