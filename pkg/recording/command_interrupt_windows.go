package recording

import "os"

// Windows cannot deliver os.Interrupt to a child process.
func interrupt(p *os.Process) error {
	return p.Kill()
}
