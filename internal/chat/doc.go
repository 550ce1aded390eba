// Package chat adapts the chat platform to the orchestrator: the Session
// contract used to reply to requesters, asset extraction from message
// elements, an HTTP bridge session that posts replies to a callback URL, and
// the asset downloader.
package chat
