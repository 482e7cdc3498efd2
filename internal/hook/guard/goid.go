// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guard

import "runtime"

// goroutineID returns the id of the calling goroutine.
//
// The id is parsed from the first line of runtime.Stack output:
//
//	goroutine 123 [running]:
//
// Performance: ~1µs per call (dominated by runtime.Stack). The guard is only
// consulted on field writes of instrumented types, so the cost is paid on a
// path that already performs a reflective lookup.
func goroutineID() int64 {
	// Only the first line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine id from stack trace bytes.
//
// Returns 0 if the buffer does not start with "goroutine <digits>".
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
