//go:build !unix

package localfs

import "errors"

// syscallNoSpace never matches on platforms without ENOSPC.
var syscallNoSpace = errors.New("no space left on device")
