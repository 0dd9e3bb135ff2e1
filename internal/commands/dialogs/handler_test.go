package dialogs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/commands/commandstest"
	"github.com/neuroasura/neuroasura/internal/database"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

func withDB(t *testing.T, env *commandstest.Env) database.Database {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "bot.db"), logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env.DB = db
	return db
}

func TestNewDialog(t *testing.T) {
	env := commandstest.NewEnv(t, nil)

	require.NoError(t, NewNew(env.Container).Handle(context.Background(), commandstest.Message(5, "/newdialog")))

	active, ok := env.Session.ActiveDialog(5)
	require.True(t, ok)
	assert.Equal(t, "🆕 Создан новый диалог #"+active.ID+"! История очищена.", env.Tg.LastText())
}

func TestListDialogs(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		require.NoError(t, NewList(env.Container).Handle(ctx, commandstest.Message(5, "/mydialogs")))
		assert.Equal(t, "📝 У вас пока нет сохраненных диалогов.", env.Tg.LastText())
	})

	t.Run("marks active and counts archive", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		db := withDB(t, env)
		require.NoError(t, db.InsertTranscript(ctx, database.TranscriptEntry{
			UserID: 5, DialogID: "old001", Role: "user", Content: "hi", CreatedAt: time.Now(),
		}))

		first := env.Session.NewDialog(5)
		_, err := env.Session.HandleUserMessage(ctx, 5, "hello")
		require.NoError(t, err)
		second := env.Session.NewDialog(5)

		require.NoError(t, NewList(env.Container).Handle(ctx, commandstest.Message(5, "/mydialogs")))

		text := env.Tg.LastText()
		assert.True(t, strings.HasPrefix(text, "📚 Ваши диалоги:"))
		assert.Contains(t, text, "1. Диалог #"+first.ID+"\n")
		assert.Contains(t, text, "сообщений: 2")
		assert.Contains(t, text, "2. Диалог #"+second.ID+" ✅")
		assert.Contains(t, text, "В архиве записей: 1")
		assert.True(t, strings.HasSuffix(text, "Используйте /exportdialog <id> для экспорта"))
	})
}

func TestExportDialog(t *testing.T) {
	ctx := context.Background()

	t.Run("usage", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		require.NoError(t, NewExport(env.Container).Handle(ctx, commandstest.Message(5, "/exportdialog")))
		assert.Contains(t, env.Tg.LastText(), "Укажите id диалога")
	})

	t.Run("inline text", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		_, err := env.Session.HandleUserMessage(ctx, 5, "hello")
		require.NoError(t, err)
		active, _ := env.Session.ActiveDialog(5)

		require.NoError(t, NewExport(env.Container).Handle(ctx, commandstest.Message(5, "/exportdialog #"+strings.ToUpper(active.ID))))

		text := env.Tg.LastText()
		assert.True(t, strings.HasPrefix(text, "📄 Диалог #"+active.ID+":\n\n"))
		assert.Contains(t, text, "👤 Вы (PRIMARY)")
		assert.Contains(t, text, "primary reply")
	})

	t.Run("long export goes as document", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		env.Primary.Reply(strings.Repeat("ответ ", 900), nil)
		_, err := env.Session.HandleUserMessage(ctx, 5, "hello")
		require.NoError(t, err)
		active, _ := env.Session.ActiveDialog(5)

		require.NoError(t, NewExport(env.Container).Handle(ctx, commandstest.Message(5, "/export "+active.ID)))

		sent := env.Tg.Sent()
		require.Len(t, sent, 1)
		doc, ok := sent[0].(telegram.DocumentMessage)
		require.True(t, ok)
		assert.Equal(t, "📄 Экспорт диалога #"+active.ID, doc.Caption)
		file, ok := doc.Document.(telegram.FileBytes)
		require.True(t, ok)
		assert.Equal(t, "dialog_"+active.ID+".txt", file.Name)
	})

	t.Run("foreign dialog is not found", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		other := env.Session.NewDialog(6)

		require.NoError(t, NewExport(env.Container).Handle(ctx, commandstest.Message(5, "/exportdialog "+other.ID)))
		assert.Equal(t, "❌ Диалог не найден.", env.Tg.LastText())
	})

	t.Run("falls back to archive", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		db := withDB(t, env)
		created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, db.InsertTranscript(ctx, database.TranscriptEntry{
			UserID: 5, DialogID: "old001", Role: "user", Model: "PRIMARY", Content: "hi", CreatedAt: created,
		}))

		require.NoError(t, NewExport(env.Container).Handle(ctx, commandstest.Message(5, "/exportdialog old001")))

		text := env.Tg.LastText()
		assert.Contains(t, text, "Диалог #old001 (архив)")
		assert.Contains(t, text, "👤 Вы (PRIMARY) (12:00):\nhi")
	})
}

func TestRenderArchive(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	text := RenderArchive("abc123", []database.TranscriptEntry{
		{Role: "user", Content: "q", CreatedAt: at},
		{Role: "assistant", Model: "SECONDARY", Content: "a", CreatedAt: at.Add(time.Minute)},
	})

	assert.Equal(t, "Диалог #abc123 (архив)\n"+
		"Создан: 2025-03-01 09:30:00\n"+
		"Сообщений: 2\n\n"+
		"👤 Вы (09:30):\nq\n\n"+
		"🤖 Бот (SECONDARY) (09:31):\na\n\n", text)
}

func TestClearDialog(t *testing.T) {
	ctx := context.Background()
	env := commandstest.NewEnv(t, nil)
	cmd := NewClear(env.Container)

	require.NoError(t, cmd.Handle(ctx, commandstest.Message(5, "/cleardialog")))
	assert.Equal(t, "❌ Нет активного диалога для очистки.", env.Tg.LastText())

	_, err := env.Session.HandleUserMessage(ctx, 5, "hello")
	require.NoError(t, err)

	require.NoError(t, cmd.Handle(ctx, commandstest.Message(5, "/cleardialog")))
	assert.Equal(t, "🧹 Текущий диалог очищен.", env.Tg.LastText())
	_, ok := env.Session.ActiveDialog(5)
	assert.False(t, ok)
}
