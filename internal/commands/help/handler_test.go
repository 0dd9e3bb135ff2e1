package help

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/commands/commandstest"
)

func TestHelp(t *testing.T) {
	env := commandstest.NewEnv(t, map[string]any{"global.interface_language": "en"})
	cmd := New(env.Container)

	assert.Equal(t, []string{"h"}, cmd.Aliases())
	require.NoError(t, cmd.Handle(context.Background(), commandstest.Message(3, "/help")))

	text := env.Tg.LastText()
	assert.True(t, strings.HasPrefix(text, "🤖 How to use the bot:"))
	for _, command := range []string{"/newdialog", "/mydialogs", "/exportdialog", "/cleardialog", "/stop", "/model", "/backendstatus", "/draw", "/describe", "/prompts", "/models", "/refreshmodels"} {
		assert.Contains(t, text, command)
	}
}
