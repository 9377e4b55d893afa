package protocol

// MessageType defines the type of a status feed message
type MessageType string

const (
	// TypeStatus carries a full StatusPayload, sent on connect and on request
	TypeStatus MessageType = "status"

	// TypeSubscriberAdded is sent when a subscriber registers with the pad
	TypeSubscriberAdded MessageType = "subscriber_added"

	// TypeSubscriberRemoved is sent when a subscriber is pruned after a failed send
	TypeSubscriberRemoved MessageType = "subscriber_removed"

	// TypeCapture is sent when the pad grabs or releases the cursor
	TypeCapture MessageType = "capture"

	// TypePing can be sent by watchers to request a fresh status
	TypePing MessageType = "ping"
)

// Message is the generic container for all status feed messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// SubscriberPayload is the payload for TypeSubscriberAdded and TypeSubscriberRemoved
type SubscriberPayload struct {
	Endpoint string `json:"endpoint"`
}

// CapturePayload is the payload for TypeCapture
type CapturePayload struct {
	Active bool `json:"active"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Instance    string   `json:"instance"`
	Version     string   `json:"version"`
	Address     string   `json:"address"`
	Sequence    uint32   `json:"sequence"`
	Capturing   bool     `json:"capturing"`
	Subscribers []string `json:"subscribers"`
}
