package preview

import "os"

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
