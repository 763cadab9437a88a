package train

import (
	"syscall"
)

// usedRAM returns used main memory in kB.
//
// Ref. http://man7.org/linux/man-pages/man2/sysinfo.2.html
func usedRAM() (uint64, bool) {
	si := &syscall.Sysinfo_t{}
	if err := syscall.Sysinfo(si); err != nil {
		return 0, false
	}
	// sizes are in multiples of Unit bytes
	used := (uint64(si.Totalram) - uint64(si.Freeram)) * uint64(si.Unit)

	return used / 1024, true
}
