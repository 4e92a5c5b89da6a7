package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("serve と migrate を持つ", func(t *testing.T) {
		root := newRootCommand()

		serve, _, err := root.Find([]string{"serve"})
		require.NoError(t, err)
		assert.Equal(t, "serve", serve.Name())
		assert.NotNil(t, serve.Flags().Lookup("store"))

		down, _, err := root.Find([]string{"migrate", "down"})
		require.NoError(t, err)
		assert.Equal(t, "down", down.Name())
		steps := down.Flags().Lookup("steps")
		require.NotNil(t, steps)
		assert.Equal(t, "1", steps.DefValue)
	})

	t.Run("未知のストアはエラー", func(t *testing.T) {
		root := newRootCommand()
		root.SetArgs([]string{"serve", "--store", "sqlite", "--env-file", "testdata/none.env"})
		root.SilenceErrors = true

		err := root.Execute()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite")
	})
}
