// Package matrix is the Matrix frontend, built on mautrix.
//
// Matrix has no inline keyboards, so every button of a reply is listed as a
// numbered option under the message text. Replying with just the number
// presses that button; anything else is treated as typed text. Options are
// remembered per room until the next reply replaces them.
//
// Entity posters are downloaded through an SSRF-safe HTTP client and
// uploaded to the homeserver's media repository before the caption is sent.
// With a recovery key configured the client joins encrypted rooms using the
// mautrix crypto helper.
package matrix
