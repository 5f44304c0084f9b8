package api

// TokenObserver receives generated text fragments as they arrive.
// It is called synchronously from the request goroutine.
type TokenObserver func(token string)

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
