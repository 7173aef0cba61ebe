package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types carried in Envelope.Type.
const (
	MessagePoseUpdate      = "pose_update"
	MessageMetricsUpdate   = "metrics_update"
	MessagePing            = "ping"
	MessagePong            = "pong"
	MessageSubscribeDevice = "subscribe_device"
	MessageSubscribed      = "subscribed"
)

// ErrMissingType is returned by DecodeEnvelope when the message has no type.
var ErrMissingType = errors.New("envelope has no type")

// Envelope is the {type, data} wrapper for every transport message.
type Envelope struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"device_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`

	// Raw holds the message exactly as received.
	Raw []byte `json:"-"`
}

// DecodeEnvelope parses an inbound message.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	env.Raw = data
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// PosePayload is the data of a pose_update envelope.
type PosePayload struct {
	Keypoints Frame `json:"keypoints"`
}

// Ping is the heartbeat message.
type Ping struct {
	Type string `json:"type"`
}

// NewPing returns a heartbeat message.
func NewPing() Ping {
	return Ping{Type: MessagePing}
}

// SubscribeDevice asks the server to route a device's telemetry to this client.
type SubscribeDevice struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// NewSubscribeDevice returns a subscribe_device message for deviceID.
func NewSubscribeDevice(deviceID string) SubscribeDevice {
	return SubscribeDevice{Type: MessageSubscribeDevice, DeviceID: deviceID}
}
