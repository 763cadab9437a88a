package train

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsedRAM(t *testing.T) {
	used, ok := usedRAM()
	require.True(t, ok)

	si := &syscall.Sysinfo_t{}
	require.NoError(t, syscall.Sysinfo(si))
	totalKB := uint64(si.Totalram) * uint64(si.Unit) / 1024

	assert.True(t, used > 0)
	assert.True(t, used <= totalKB, "used %v kB of %v kB", used, totalKB)
}
