// Package discovery resolves plugin names to files.
//
// Plugins live in a "plugins" directory under the per-user data directory of
// the application:
//
//	Linux    $XDG_DATA_HOME/dyparser/plugins/<name>.wasm
//	macOS    ~/Library/Application Support/org.loara.dyparser/plugins/<name>.wasm
//	Windows  %LOCALAPPDATA%\loara\dyparser\data\plugins\<name>.wasm
//
// Compressed modules (.wasm.zst, .wasm.gz) and JavaScript plugins (.js) are
// found by the same name when no plain .wasm exists.
package discovery
