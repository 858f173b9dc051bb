package configuration

import (
	"errors"
	"io/fs"

	"github.com/subosito/gotenv"

	"linkedpost/infrastructure/logger"
)

// LoadEnvFromFile loads dotenv files that exist, without overriding variables
// already set in the process, and rebuilds C when any file was read.
func LoadEnvFromFile(paths ...string) int {
	loaded := 0
	for _, p := range paths {
		err := gotenv.Load(p)
		switch {
		case err == nil:
			loaded++
			logger.GetLogger().WithField("file", p).Info("Loaded env file")
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.GetLogger().WithField("file", p).WithField("error", err).Warn("Error reading env file")
		}
	}
	if loaded > 0 {
		apply()
	}
	return loaded
}
