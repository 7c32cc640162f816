// Package notifier delivers the post-run change summary.
package notifier

// TextNotifier is a minimal text notification interface, small on purpose so
// callers never depend on a concrete transport.
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
