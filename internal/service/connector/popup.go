package connector

import "encoding/json"

// Popup is an opened auth window. Implementations wrap whatever surface
// actually hosts the flow (a browser window, an external user agent).
type Popup interface {
	// Closed reports whether the user dismissed the window.
	Closed() bool

	// Close dismisses the window. Safe to call on an already-closed
	// popup.
	Close()
}

// Opener opens auth popups. Returns ErrPopupBlocked when the surface
// refuses to open one.
type Opener interface {
	Open(url string) (Popup, error)
}

// Message is one completion message posted by the OAuth callback
// service.
type Message struct {
	Origin string
	Type   string
	Data   json.RawMessage
}

// MessageSource delivers completion messages. The returned function
// removes the listener.
type MessageSource interface {
	Listen(fn func(Message)) (unsubscribe func())
}
