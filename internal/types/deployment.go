package types

import ierr "github.com/wellpath/wellpath/internal/errors"

// RunMode is the deployment mode of the service.
type RunMode string

const (
	RunModeLocal RunMode = "local"
	RunModeDev   RunMode = "dev"
	RunModeProd  RunMode = "prod"
)

func (m RunMode) Validate() error {
	switch m {
	case RunModeLocal, RunModeDev, RunModeProd:
		return nil
	default:
		return ierr.NewErrorf("invalid deployment mode: %s", m).
			Mark(ierr.ErrValidation)
	}
}

// LogLevel controls logger verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
