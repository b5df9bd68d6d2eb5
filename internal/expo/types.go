package expo

// Message is one push notification addressed to a single device token.
type Message struct {
	To        string         `json:"to"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Sound     string         `json:"sound,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	TTL       int            `json:"ttl,omitempty"`
}

// Ticket is the gateway's synchronous acknowledgment for one message.
// A ticket with StatusOK carries an ID that can be exchanged for a
// delivery receipt later; a ticket with StatusError carries the error
// detail instead.
type Ticket struct {
	ID      string        `json:"id,omitempty"`
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// Receipt is the delayed delivery confirmation for a ticket.
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

type ErrorDetails struct {
	Error string `json:"error,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes the gateway reports in ticket and receipt details.
const (
	ErrDeviceNotRegistered = "DeviceNotRegistered"
	ErrMessageTooBig       = "MessageTooBig"
	ErrMessageRateExceeded = "MessageRateExceeded"
	ErrInvalidCredentials  = "InvalidCredentials"
)

// IsPermanentTokenError reports whether the given error code means the
// destination will never receive pushes again and should be pruned.
func IsPermanentTokenError(code string) bool {
	return code == ErrDeviceNotRegistered
}
