// Package gid derives a stable numeric identity for the calling goroutine.
//
// Go has no public API exposing a goroutine's runtime id (see
// golang.org/issue/28147), so this package uses the long-standing idiom of
// parsing it out of the header line of a runtime.Stack dump. It exists
// purely to stand in for "thread identity" in the object pool: goroutines
// play the role threads play in the source design this package implements.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the id of the calling goroutine.
//
// It is safe for concurrent use, but is relatively expensive (it forces a
// small stack dump): callers should cache the result for the lifetime of a
// single pool operation rather than calling it repeatedly in a hot loop.
func Current() int64 {
	buf := make([]byte, 64)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}

	// the header line looks like: "goroutine 123 [running]:"
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		panic("gid: unexpected runtime.Stack header: " + string(buf))
	}
	buf = buf[len(prefix):]
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}

	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		panic("gid: failed to parse goroutine id: " + err.Error())
	}
	return id
}
