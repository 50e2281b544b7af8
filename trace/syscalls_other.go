//go:build !linux || !amd64

package trace

var archSyscalls []syscallSpec
