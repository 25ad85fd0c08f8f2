package channel

// Client defines an interface for sending messages over the outbound
// notification channel. This decouples the application logic from the
// concrete messaging provider.
type Client interface {
	Send(recipient string, text string) error
}
