// Package bot drives conversation turns between chat frontends and the
// watch-list state machine.
//
// A frontend converts its native update into an Inbound and calls
// Engine.HandleEvent. The engine drops redelivered events, serializes turns
// per conversation, loads the session, runs the machine's effects against
// the store and the metadata providers, saves the session and returns the
// single render.Instruction the frontend should display.
package bot
