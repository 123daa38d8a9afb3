//go:build !darwin && !windows

package preview

var defaultLiteCommand = []string{"xdg-open"}

var fullSupported = false
