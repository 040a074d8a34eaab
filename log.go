package nexusrpc

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sync"
	"time"
)

// for debug output from the NAL/forwarding engine during development.
var verbose bool = false
var forceQuiet = false

const rfc3339NanoNumericTZ0pad = "2006-01-02T15:04:05.000000000-07:00"

var myPid = os.Getpid()
var showPid bool
var showGoID bool = true

var tsPrintfMut sync.Mutex

// so we can multi write easily, use our own printf
var ourStdout io.Writer = os.Stderr

// vv is a time-stamped, file/line prefixed debug printf; silenced unless
// the caller sets forceQuiet=false (the default) and actually calls it.
// Kept distinct from log.Printf so debug noise can be grepped/filtered.
func vv(format string, a ...interface{}) {
	if !forceQuiet {
		tsPrintf(format, a...)
	}
}

func alwaysPrintf(format string, a ...interface{}) {
	tsPrintf(format, a...)
}

func tsPrintf(format string, a ...interface{}) {
	tsPrintfMut.Lock()
	defer tsPrintfMut.Unlock()
	if showPid {
		printf("\n%s [pid %v] %s ", fileLine(3), myPid, ts())
	} else if showGoID {
		printf("\n%s [goID %v] %s ", fileLine(3), goroNumber(), ts())
	} else {
		printf("\n%s %s ", fileLine(3), ts())
	}
	printf(format+"\n", a...)
}

func ts() string {
	return time.Now().UTC().Format(rfc3339NanoNumericTZ0pad)
}

func printf(format string, a ...interface{}) (n int, err error) {
	return fmt.Fprintf(ourStdout, format, a...)
}

func fileLine(depth int) string {
	_, fileName, fileLn, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", path.Base(fileName), fileLn)
}

// goroNumber returns the calling goroutine's number, parsed out of its
// own stack trace; useful to correlate interleaved vv() output.
func goroNumber() int {
	buf := make([]byte, 64)
	nw := runtime.Stack(buf, false)
	buf = buf[:nw]
	i := 10
	for i < len(buf) && buf[i] != ' ' {
		i++
	}
	var n int
	fmt.Sscanf(string(buf[10:i]), "%d", &n)
	return n
}

func panicf(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}
