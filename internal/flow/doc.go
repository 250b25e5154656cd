// Package flow is the conversation state machine of vistly-bot.
//
// A conversation is always in exactly one State. Machine.Step takes the
// Session and one inbound Event and returns a Plan: an ordered list of
// Effects such as "search the provider" or "render the entry screen". The
// package performs no I/O. The bot engine executes each effect and reports
// an Outcome back through Machine.Observe, which may replace the rest of the
// plan (for example a failed search redirects to an error message, and a
// list page past the end redirects to the last page).
//
//	plan := m.Step(sess, flow.ButtonPress{Data: "ls_page:2"})
//	for _, eff := range plan.Effects {
//		out := execute(eff)
//		if next := m.Observe(sess, eff, out); next != nil {
//			// continue with next.Effects instead
//		}
//	}
//
// # Handlers
//
// Global commands (/start, /restart, /help, /list, /profile and the menu
// labels) are checked first. Button presses are then dispatched through a
// single map from State to handler built in NewMachine. A payload that does
// not parse, or that names an entity or entry other than the one the session
// points at, is acknowledged with "invalid input" and leaves the state alone.
//
// # Session Hygiene
//
// Session.Normalize runs after every Step and Observe and clears fields that
// do not belong to the current state, so a stale entry id can never leak
// into another flow.
package flow
