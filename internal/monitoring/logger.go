package monitoring

import "log"

// Logf is the process-level logger used outside a pipeline run (startup,
// migrations, HTTP lifecycle). It defaults to log.Printf and may be replaced
// by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
