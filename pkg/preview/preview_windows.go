package preview

var defaultLiteCommand = []string{"explorer"}

var fullSupported = false
