// Package render turns screen data into frontend-neutral Instructions.
//
// An Instruction is one of four kinds: a text message with an inline
// keyboard, a photo with a caption, a bare acknowledgement of a button press,
// or nothing. Text is written in the Telegram HTML subset; the Matrix
// frontend converts it for its own clients.
//
// Entity captions follow a fixed layout:
//
//	<code>Breaking Bad (2008 - 2013)</code> - Series
//
//	<blockquote><b>Rating:</b> IMDb - 9.5 | RT - 96%
//	<b>Runtime:</b> 49 min
//	...</blockquote>
//
//	Description
//
// Media captions are limited to 1024 runes and the description is shortened
// first. Button payloads come from the flow package codec.
package render
