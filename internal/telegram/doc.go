// Package telegram is the Telegram Bot API frontend.
//
// The Frontend long-polls getUpdates, converts each message or callback
// query into a bot.Inbound and hands it to the turn engine. Updates of one
// chat are delivered to the engine in arrival order; different chats run
// concurrently. The returned render.Instruction becomes a sent or edited
// message, a photo with caption, or a callback answer.
//
// Only one process may poll a bot token at a time. The app package guards
// this with a file lock.
package telegram
