//go:build unix

package taskloader

import "golang.org/x/sys/unix"

func checkReadable(dir string) error {
	return unix.Access(dir, unix.R_OK)
}
