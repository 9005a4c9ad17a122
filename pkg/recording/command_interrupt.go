//go:build !windows

package recording

import "os"

func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
