package misc

import (
	"fmt"
	"io"
	"log"
	"time"
)

// ShortTimeWriter prefixes each write with a compact timestamp,
// YYYYMMDD-HHMMSS(.mmm), replacing the stdlib date/time flags.
type ShortTimeWriter struct {
	w         io.Writer
	withMilli bool
}

func NewShortTimeWriter(w io.Writer, withMilli bool) *ShortTimeWriter {
	return &ShortTimeWriter{
		w:         w,
		withMilli: withMilli,
	}
}

func (tw *ShortTimeWriter) Write(p []byte) (int, error) {
	var ts string
	if tw.withMilli {
		ts = time.Now().Format("20060102-150405.000")
	} else {
		ts = time.Now().Format("20060102-150405")
	}
	return fmt.Fprintf(tw.w, "%s %s", ts, p)
}

const timeFlags = log.Ldate | log.Ltime | log.Lmicroseconds

// NewLog builds a tagged logger writing through a ShortTimeWriter. The
// stdlib time flags are stripped since the writer renders the timestamp.
func NewLog(w io.Writer, tag string, flag int) *log.Logger {
	flag &^= timeFlags
	flag |= log.Lmsgprefix

	return log.New(
		NewShortTimeWriter(w, false),
		tag,
		flag,
	)
}

// NewLogMilli is NewLog with millisecond timestamps.
func NewLogMilli(w io.Writer, tag string, flag int) *log.Logger {
	flag &^= timeFlags
	flag |= log.Lmsgprefix
	return log.New(
		NewShortTimeWriter(w, true),
		tag,
		flag,
	)
}
