// Package logging configures diagnostic logging for fieldhook tools and
// for programs linked against the fieldhook runtime.
//
// Loggers are resolved on every call rather than cached at init time, so a
// package may log before or after Configure without losing messages once a
// backend is installed.
package logging

import (
	"io"

	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
	"github.com/tliron/kutil/util"
)

// Prefix is prepended to every logger name.
const Prefix = "fieldhook."

// Configure installs the backend at the given verbosity. 0 logs notices and
// above, each increment adds a level and each decrement removes one. -4 or
// below disables logging.
func Configure(verbosity int) {
	commonlog.Configure(verbosity, nil)
}

// ConfigureWriter installs an unbuffered simple backend at the given
// verbosity. Messages are written before the logging call returns, so none
// are lost when the program exits right after. A nil w logs to stderr.
func ConfigureWriter(verbosity int, w io.Writer) {
	backend := simple.NewBackend()
	backend.Buffered = false
	if w == nil {
		backend.Configure(verbosity, nil)
	} else if maxLevel := commonlog.VerbosityToMaxLevel(verbosity); maxLevel == commonlog.None {
		backend.Writer = io.Discard
		backend.SetMaxLevel(commonlog.None)
	} else {
		backend.Writer = util.NewSyncedWriter(w)
		backend.SetMaxLevel(maxLevel)
	}
	commonlog.SetBackend(backend)
}

// Logger returns the named fieldhook logger.
func Logger(name string) commonlog.Logger {
	return commonlog.GetLogger(Prefix + name)
}
