// Package console is the terminal front end for nexus-chat.
//
// Sink renders the transcript and the progress log, Input reads typed
// lines and slash commands, and Prompts offers a few showcase questions
// until the first request goes out.
package console
