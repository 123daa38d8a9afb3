// Package quicklook copies the data exposed by an object of a stopped
// program into a file so that it can be previewed.
//
// An object takes part by implementing two methods:
//
//	// QuickLookDebugData returns the bytes to save.
//	func (x *T) QuickLookDebugData() []byte
//	// QuickLookDebugFilename returns the name of the saved file.
//	func (x *T) QuickLookDebugFilename() string
//
// The methods are evaluated inside the stopped process through a Session,
// which hides the debugger. The bytes are copied verbatim to
// <TempDir>/<target>/<filename>.
package quicklook
