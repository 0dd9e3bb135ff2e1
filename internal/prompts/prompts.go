package prompts

import (
	"slices"
	"strings"
	"sync"

	"github.com/neuroasura/neuroasura/internal/config"
)

const DefaultName = "default"

type Persona struct {
	Name        string
	Title       string
	Description string
	Text        string
}

var builtins = []Persona{
	{
		Name:        "default",
		Title:       "стандартный помощник",
		Description: "Стандартный AI ассистент",
		Text:        "Ты полезный AI ассистент Нейро Асура. Отвечай вежливо и информативно.",
	},
	{
		Name:        "coding",
		Title:       "помощник по программированию",
		Description: "Помощник по программированию",
		Text: "Ты экспертная помощница по программированию Нейро Асура. \n" +
			"Отвечай на технические вопросы, помогай с кодом, объясняй концепции.\n" +
			"Предоставляй примеры кода на Python когда это уместно.",
	},
	{
		Name:        "creative",
		Title:       "креативный писатель",
		Description: "Креативный писатель и поэт",
		Text: "Ты креативная писательница и поэт Нейро Асура. \n" +
			"Отвечай творчески, используй метафоры и образный язык.\n" +
			"Создавай интересные истории и стихи.",
	},
	{
		Name:        "science",
		Title:       "научный помощник",
		Description: "Научный помощник",
		Text: "Ты научная помощница Нейро Асура. Отвечай точно и научно обоснованно.\n" +
			"Используй факты и данные, объясняй сложные концепции простым языком.",
	},
	{
		Name:        "psychology",
		Title:       "психолог",
		Description: "Психолог-помощник",
		Text: "Ты empathetic психолог-помощник Нейро Асура. \n" +
			"Отвечай с заботой и пониманием, поддерживай пользователя.\n" +
			"Давай мудрые советы но не заменяй профессиональную помощь.",
	},
	{
		Name:        "business",
		Title:       "бизнес-консультант",
		Description: "Бизнес-консультант",
		Text: "Ты бизнес-консультант Нейро Асура. Помогай с бизнес-вопросами, \n" +
			"стратегией, маркетингом и управлением. Давай практические советы.",
	},
	{
		Name:        "teacher",
		Title:       "учитель",
		Description: "Учитель-помощник",
		Text: "Ты учительница-помощница. Объясняй concepts clearly, \n" +
			"задавай наводящие вопросы, помогай учиться.",
	},
}

// Manager keeps the persona catalog and each user's selection in memory.
type Manager struct {
	personas map[string]Persona
	order    []string
	selected map[int64]string
	mu       sync.RWMutex
}

// NewManager merges config overrides into the built-in personas.
// An override with empty fields keeps the built-in values for them.
func NewManager(overrides map[string]config.PromptConfig) *Manager {
	m := &Manager{
		personas: make(map[string]Persona, len(builtins)+len(overrides)),
		selected: make(map[int64]string),
	}
	for _, p := range builtins {
		m.personas[p.Name] = p
		m.order = append(m.order, p.Name)
	}

	extra := make([]string, 0, len(overrides))
	for name, override := range overrides {
		name = strings.ToLower(name)
		p, exists := m.personas[name]
		if !exists {
			p = Persona{Name: name, Title: name, Description: name}
			extra = append(extra, name)
		}
		if override.Text != "" {
			p.Text = override.Text
		}
		if override.Description != "" {
			p.Description = override.Description
		}
		if override.Title != "" {
			p.Title = override.Title
		}
		if p.Text == "" {
			continue
		}
		m.personas[name] = p
	}
	slices.Sort(extra)
	for _, name := range extra {
		if _, ok := m.personas[name]; ok {
			m.order = append(m.order, name)
		}
	}
	return m
}

// Get resolves a persona by name. Unknown names resolve to the default one.
func (m *Manager) Get(name string) (Persona, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.personas[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, true
	}
	return m.personas[DefaultName], false
}

func (m *Manager) List() []Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]Persona, 0, len(m.order))
	for _, name := range m.order {
		list = append(list, m.personas[name])
	}
	return list
}

// Set selects a persona for the user and returns the one actually applied.
func (m *Manager) Set(userID int64, name string) Persona {
	p, _ := m.Get(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected[userID] = p.Name
	return p
}

func (m *Manager) Reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, userID)
}

// Current returns the user's persona and whether it was explicitly chosen.
func (m *Manager) Current(userID int64) (Persona, bool) {
	m.mu.RLock()
	name, ok := m.selected[userID]
	m.mu.RUnlock()

	p, _ := m.Get(name)
	return p, ok
}

func (m *Manager) SystemPrompt(userID int64) string {
	p, _ := m.Current(userID)
	return p.Text
}
