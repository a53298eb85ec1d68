package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStringNamesBinary(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	assert.True(t, strings.HasPrefix(VersionString(), "companion/1.2.3 ("))
}

func TestCommitPrefersLdflags(t *testing.T) {
	old := Commit
	Commit = "abc1234"
	t.Cleanup(func() { Commit = old })

	assert.Equal(t, "abc1234", commit())
}
