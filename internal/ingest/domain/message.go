package domain

// CommandRequest is a command-enqueue message published by the external
// admin surface
type CommandRequest struct {
	RequestID string `json:"request_id"`
	APIKey    string `json:"api_key"`
	Payload   string `json:"payload"`

	DeliveryTag uint64 `json:"-"`
}
