// Package dedupe rejects inbound updates that were already processed.
//
// Chat transports redeliver updates after reconnects and webhook retries.
// The engine records each update ID in a Window and drops the turn when the
// ID is still inside the window.
package dedupe
