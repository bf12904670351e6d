package watch

import (
	"os"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
)

// statType classifies path's current on-disk type, used to fill in a
// RawEvent's After field for the notification backend. The polling
// backend sets After from its own scan instead.
func statType(path string) fileevent.FileType {
	info, err := os.Stat(path)
	if err != nil {
		return fileevent.TypeAbsent
	}
	if info.IsDir() {
		return fileevent.TypeDir
	}
	return fileevent.TypeFile
}
