package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/goasics/version"
)

func TestVersionCommand(t *testing.T) {
	env, out, _ := testEnv(t)
	cmd := NewVersionCommand(env)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.FullInfo(), strings.TrimSpace(out.String()))

	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
