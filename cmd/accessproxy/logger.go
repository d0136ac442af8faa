package main

import (
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// newCLILogger writes console formatted records to w. Fatal only logs so a
// failing command still returns through cobra.
func newCLILogger(w io.Writer, verbose bool) *glog.BaseLogger {
	level := glog.Info
	if verbose {
		level = glog.Debug
	}
	return glog.NewLogger(
		glog.WithName("accessproxy"),
		glog.WithWriter(w),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
		glog.WithFatalBehavior(glog.FatalBehaviorLogOnly),
	)
}
