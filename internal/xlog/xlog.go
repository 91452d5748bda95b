// Package xlog is the ambient progress logger: a package-global on/off
// switch plus an optional timestamp prefix, backed by the stdlib log
// package. Fatal conditions go through glog instead, at the CLI layer.
// Unlike a plain bool pair toggled once at startup, the switches here are
// atomic.Bool so concurrent ingest workers can call Output/Outputf from
// many goroutines at once without a race on the flags themselves, and the
// timestamp is folded into the same log line as the message rather than
// printed as a separate line ahead of it.
package xlog

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

var (
	enabled     atomic.Bool
	timestamped atomic.Bool
)

func init() {
	enabled.Store(true)
	timestamped.Store(true)
}

func Enable()  { enabled.Store(true) }
func Disable() { enabled.Store(false) }

func EnableTimestamp()  { timestamped.Store(true) }
func DisableTimestamp() { timestamped.Store(false) }

func timestampPrefix() string {
	if !timestamped.Load() {
		return ""
	}
	return "[" + time.Now().Format("2006-01-02 15:04:05.000") + "] "
}

// Output logs val, space-separated, if logging is enabled, with any
// timestamp prefix folded into the same line ahead of the message.
func Output(val ...interface{}) {
	if !enabled.Load() {
		return
	}
	log.Print(timestampPrefix(), fmt.Sprintln(val...))
}

// Outputf is the Printf-style variant.
func Outputf(format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	log.Printf(timestampPrefix()+format, args...)
}
