package telegram

import (
	"sync"
)

// TestClient records everything the bot sends instead of calling the Bot API.
type TestClient struct {
	mu       sync.Mutex
	sent     []MessageConfig
	requests []MessageConfig
	actions  []ChatAction
	nextID   int
	self     User
	updates  chan Update

	// SendErr, when set, decides the error returned for a message before it is recorded.
	SendErr func(msg MessageConfig) error
}

func NewTestClient() *TestClient {
	return &TestClient{
		self:    User{ID: 1, FirstName: "Neuroasura", UserName: "neuroasura_bot"},
		updates: make(chan Update, 16),
	}
}

func (c *TestClient) Send(msg MessageConfig) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		if err := c.SendErr(msg); err != nil {
			return nil, err
		}
	}
	c.sent = append(c.sent, msg)
	c.nextID++
	return &Message{MessageID: c.nextID, From: c.self}, nil
}

func (c *TestClient) SendWithRetry(msg MessageConfig, _ int) (*Message, error) {
	return c.Send(msg)
}

func (c *TestClient) GetUpdatesChan(UpdateConfig) <-chan Update {
	return c.updates
}

func (c *TestClient) StopReceivingUpdates() {}

// Push queues an update for GetUpdatesChan consumers.
func (c *TestClient) Push(update Update) {
	c.updates <- update
}

func (c *TestClient) Request(msg MessageConfig) (*APIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, msg)
	return &APIResponse{Ok: true}, nil
}

func (c *TestClient) SendChatAction(_ int64, action ChatAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
	return nil
}

func (c *TestClient) NewUpdate(offset, timeout, limit int) UpdateConfig {
	return UpdateConfig{Offset: offset, Timeout: timeout, Limit: limit}
}

func (c *TestClient) Self() User {
	return c.self
}

func (c *TestClient) Sent() []MessageConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MessageConfig(nil), c.sent...)
}

// Texts returns the text of every sent TextMessage, in order.
func (c *TestClient) Texts() []string {
	var texts []string
	for _, msg := range c.Sent() {
		if text, ok := msg.(TextMessage); ok {
			texts = append(texts, text.Text)
		}
	}
	return texts
}

// LastText is the text of the most recent TextMessage, or "".
func (c *TestClient) LastText() string {
	texts := c.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (c *TestClient) Requests() []MessageConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MessageConfig(nil), c.requests...)
}

func (c *TestClient) Actions() []ChatAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatAction(nil), c.actions...)
}

func (c *TestClient) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.requests = nil
	c.actions = nil
}
