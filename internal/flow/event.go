// ABOUTME: Inbound event union consumed by the state machine
// ABOUTME: Frontends translate platform updates into exactly one of Text or ButtonPress

package flow

// Event is a single inbound user action. The only implementations are Text
// and ButtonPress.
type Event interface {
	isEvent()
}

// Text is a typed message, a command such as "/start entity_42", or a
// reply-keyboard label. Non-text content arrives with an empty Body.
type Text struct {
	Body string
}

// ButtonPress is an inline-keyboard callback carrying its payload string
type ButtonPress struct {
	Data string
}

func (Text) isEvent()        {}
func (ButtonPress) isEvent() {}
