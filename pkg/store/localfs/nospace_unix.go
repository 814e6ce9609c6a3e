//go:build unix

package localfs

import "syscall"

var syscallNoSpace error = syscall.ENOSPC
