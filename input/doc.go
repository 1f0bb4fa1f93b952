// Package input turns configuration files into the text handed to plugins.
//
// Plugins receive Unicode characters, so bytes are decoded before a parse
// starts. A byte order mark wins; otherwise valid UTF-8 is taken as is and
// anything else goes through charset detection. A fixed encoding can be
// forced by its WHATWG label ("latin1", "shift_jis", "utf-16le", ...).
package input
