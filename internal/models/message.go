package models

// Command names accepted on the control channel.
const (
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
	CommandGetStatus  = "getStatus"
)

// Command is a request from a controlling surface. Only Type is meaningful.
type Command struct {
	Type string `json:"type"`
}

// Response answers every command. Result is only set for getStatus, so
// acknowledgements encode as {}.
type Response struct {
	Result string `json:"result,omitempty"`
}

// Message is the envelope used for non-command replies such as health checks.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
