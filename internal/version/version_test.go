package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	assert.Equal(t, "dev (commit: unknown)", Full())
}

func TestFullWithPlatform(t *testing.T) {
	got := FullWithPlatform()

	assert.Contains(t, got, "dev (commit: unknown, ")
	assert.Contains(t, got, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, got, runtime.Version())
}
