package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/commands/commandstest"
)

var catalog = []ai.ModelInfo{
	{ID: "Embeddings", Object: "model"},
	{ID: "GigaChat", Object: "model", OwnedBy: "salutedevices"},
	{ID: "GigaChat-Pro", Object: "model", OwnedBy: "salutedevices"},
}

func TestList(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Primary.SetModels(catalog, nil)

	require.NoError(t, NewList(env.Container).Handle(context.Background(), commandstest.Message(3, "/models")))

	assert.Equal(t, "📊 Доступные модели:\n• GigaChat\n• GigaChat-Pro\n• Embeddings", env.Tg.LastText())
}

func TestList_Truncated(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	var many []ai.ModelInfo
	for i := range 13 {
		many = append(many, ai.ModelInfo{ID: fmt.Sprintf("model-%02d", i)})
	}
	env.Primary.SetModels(many, nil)

	require.NoError(t, NewList(env.Container).Handle(context.Background(), commandstest.Message(3, "/models")))

	text := env.Tg.LastText()
	assert.Contains(t, text, "• model-09")
	assert.NotContains(t, text, "model-10")
	assert.Contains(t, text, "... и еще 3 моделей.")
}

func TestList_Errors(t *testing.T) {
	t.Run("backend error", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		env.Primary.SetModels(nil, errors.New("unauthorized"))

		require.NoError(t, NewList(env.Container).Handle(context.Background(), commandstest.Message(3, "/models")))
		assert.Equal(t, "❌ Не удалось получить список моделей.", env.Tg.LastText())
		assert.True(t, env.Log.HasEntry("error", "Failed to get models"))
	})

	t.Run("no catalog", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		env.Catalog = nil

		require.NoError(t, NewList(env.Container).Handle(context.Background(), commandstest.Message(3, "/models")))
		assert.Equal(t, "❌ Список моделей недоступен для текущей основной модели.", env.Tg.LastText())
	})
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "usage",
			text:     "/modelinfo",
			expected: []string{"❌ Укажите название модели."},
		},
		{
			name:     "not found",
			text:     "/modelinfo GigaChat-Max",
			expected: []string{"❌ Модель 'GigaChat-Max' не найдена."},
		},
		{
			name: "found",
			text: "/modelinfo GigaChat-Pro",
			expected: []string{
				"🏷️ Название: GigaChat-Pro",
				"📁 Тип: model",
				"👥 Владелец: salutedevices",
				"Продвинутая версия",
			},
		},
		{
			name:     "unknown owner",
			text:     "/modelinfo Embeddings",
			expected: []string{"👥 Владелец: unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := commandstest.NewEnv(t, nil)
			env.Primary.SetModels(catalog, nil)

			require.NoError(t, NewInfo(env.Container).Handle(context.Background(), commandstest.Message(3, tt.text)))

			text := env.Tg.LastText()
			for _, part := range tt.expected {
				assert.Contains(t, text, part)
			}
		})
	}
}

func TestStats(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Primary.SetModels(append(catalog, ai.ModelInfo{ID: "GigaChat:latest", OwnedBy: "salutedevices"}), nil)

	require.NoError(t, NewStats(env.Container).Handle(context.Background(), commandstest.Message(3, "/modelstats")))

	text := env.Tg.LastText()
	assert.Contains(t, text, "📈 Всего моделей: 4")
	assert.Contains(t, text, "🔧 Типы моделей:\n   • embedding: 1\n   • latest: 1\n   • pro: 1\n   • standard: 1")
	assert.Contains(t, text, "👥 Владельцы:\n   • salutedevices: 3\n   • unknown: 1")
	assert.Contains(t, text, "🆕 Последние версии: GigaChat:latest")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	env := commandstest.NewEnv(t, nil)
	env.Primary.SetModels(catalog[:1], nil)

	_, err := env.Catalog.Models(ctx, false)
	require.NoError(t, err)

	env.Primary.SetModels(catalog, nil)
	require.NoError(t, NewRefresh(env.Container).Handle(ctx, commandstest.Message(3, "/refreshmodels")))
	assert.Equal(t, "✅ Список моделей обновлен!\nЗагружено 3 моделей.", env.Tg.LastText())

	env.Primary.SetModels(nil, errors.New("timeout"))
	require.NoError(t, NewRefresh(env.Container).Handle(ctx, commandstest.Message(3, "/refreshmodels")))
	assert.Equal(t, "❌ Ошибка при обновлении списка моделей.", env.Tg.LastText())
}
