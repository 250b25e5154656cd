// ABOUTME: Frontend-neutral reply produced by every turn
// ABOUTME: Frontends map an Instruction onto their own message, media and button primitives

package render

// Kind selects how a frontend presents an Instruction
type Kind int

const (
	// NoOp sends nothing
	NoOp Kind = iota
	// ShowTextWithButtons sends or edits a text message with an inline keyboard
	ShowTextWithButtons
	// ShowMediaWithCaption sends a photo with the text as caption
	ShowMediaWithCaption
	// Acknowledge answers a button press without a new message
	Acknowledge
)

func (k Kind) String() string {
	switch k {
	case ShowTextWithButtons:
		return "text"
	case ShowMediaWithCaption:
		return "media"
	case Acknowledge:
		return "ack"
	default:
		return "noop"
	}
}

// Button is one inline keyboard button. Data is a flow payload; URL buttons
// open a link instead.
type Button struct {
	Text string
	Data string
	URL  string
}

// Instruction is the single reply of a turn.
// Text uses the Telegram HTML subset (<b>, <code>, <blockquote>, <a>).
type Instruction struct {
	Kind     Kind
	Text     string
	MediaURL string
	Buttons  [][]Button

	// Menu replaces the reply keyboard when non-nil
	Menu []string

	// Notice is shown as a toast for button presses; Alert makes it modal
	Notice string
	Alert  bool
}

// HasButtons reports whether the instruction carries an inline keyboard
func (in Instruction) HasButtons() bool {
	for _, row := range in.Buttons {
		if len(row) > 0 {
			return true
		}
	}
	return false
}
