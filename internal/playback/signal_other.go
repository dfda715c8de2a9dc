//go:build !unix

package playback

import "os"

func suspend(*os.Process) error {
	return ErrUnsupported
}

func resume(*os.Process) error {
	return ErrUnsupported
}
