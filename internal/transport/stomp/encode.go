package stomp

import "encoding/json"

// marshalPayload accepts pre-encoded bytes as-is and JSON-encodes anything
// else.
func marshalPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
