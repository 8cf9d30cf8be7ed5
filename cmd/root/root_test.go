package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRegistersFlags(t *testing.T) {
	Init()

	for _, name := range []string{"input", "output", "user"} {
		flag := Cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "flag %s should be registered", name)
	}
}

func TestRootCommandMetadata(t *testing.T) {
	assert.Equal(t, "mail-ledger", Cmd.Use)
	assert.NotEmpty(t, Cmd.Short)
	assert.NotNil(t, Cmd.Run)
}
