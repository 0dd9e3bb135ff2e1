package telegram

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/neuroasura/neuroasura/internal/logger"
)

var retryAfterRe = regexp.MustCompile(`retry after (\d+)`)

type BotClient struct {
	bot    *tgbotapi.BotAPI
	logger logger.Logger
	sleep  func(time.Duration)
}

func NewBotClient(bot *tgbotapi.BotAPI, log logger.Logger) Client {
	return &BotClient{
		bot:    bot,
		logger: logger.Component(log, "telegram"),
		sleep:  time.Sleep,
	}
}

func (c *BotClient) Send(msg MessageConfig) (*Message, error) {
	sentMsg, err := c.bot.Send(msg.ToChattable())
	if err != nil {
		return nil, err
	}
	return adaptMessage(&sentMsg), nil
}

// SendWithRetry waits out "Too Many Requests" answers up to maxRetryCount times.
func (c *BotClient) SendWithRetry(msg MessageConfig, maxRetryCount int) (*Message, error) {
	maxRetries := 1
	if maxRetryCount > 0 {
		maxRetries = maxRetryCount
	}

	for attempt := 0; ; attempt++ {
		sentMsg, err := c.bot.Send(msg.ToChattable())
		if err == nil {
			return adaptMessage(&sentMsg), nil
		}
		if !IsTooManyRequests(err) || attempt >= maxRetries {
			return nil, err
		}

		retryAfter := RetryAfter(err)
		waitTime := time.Duration(retryAfter+2) * time.Second
		c.logger.WithFields(logger.Fields{
			"retry_after": retryAfter,
			"wait_time":   waitTime,
			"attempt":     attempt + 1,
		}).Warn("Rate limit hit, waiting before retry")
		c.sleep(waitTime)
	}
}

func (c *BotClient) GetUpdatesChan(config UpdateConfig) <-chan Update {
	return c.bot.GetUpdatesChan(tgbotapi.UpdateConfig{
		Offset:  config.Offset,
		Limit:   config.Limit,
		Timeout: config.Timeout,
	})
}

func (c *BotClient) StopReceivingUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *BotClient) Request(message MessageConfig) (*APIResponse, error) {
	return c.bot.Request(message.ToChattable())
}

func (c *BotClient) SendChatAction(chatID int64, action ChatAction) error {
	_, err := c.bot.Request(tgbotapi.NewChatAction(chatID, string(action)))
	return err
}

func (c *BotClient) NewUpdate(offset, timeout, limit int) UpdateConfig {
	return UpdateConfig{
		Offset:  offset,
		Limit:   limit,
		Timeout: timeout,
	}
}

func (c *BotClient) Self() User {
	return adaptUser(&c.bot.Self)
}

func IsTooManyRequests(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return err != nil && strings.Contains(err.Error(), "Too Many Requests: retry after")
}

// RetryAfter returns the flood wait in seconds, from the response parameters when present.
func RetryAfter(err error) int {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	if err == nil {
		return 0
	}
	return ExtractRetryAfter(err.Error())
}

// IsParseError reports whether Telegram rejected the message markup.
func IsParseError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "can't parse entities")
}

func ExtractRetryAfter(errMsg string) int {
	matches := retryAfterRe.FindStringSubmatch(errMsg)
	if len(matches) > 1 {
		retryAfter, _ := strconv.Atoi(matches[1])
		return retryAfter
	}
	return 0
}

func adaptMessage(msg *tgbotapi.Message) *Message {
	if msg == nil {
		return nil
	}

	return &Message{
		MessageID: msg.MessageID,
		Chat:      adaptChat(&msg.Chat),
		Text:      msg.Text,
		From:      adaptUser(msg.From),
	}
}

func adaptUser(user *tgbotapi.User) User {
	if user == nil {
		return User{}
	}
	return User{
		ID:        int64(user.ID),
		FirstName: user.FirstName,
		UserName:  user.UserName,
	}
}

func adaptChat(chat *tgbotapi.Chat) Chat {
	if chat == nil {
		return Chat{}
	}
	return Chat{
		ID:   chat.ID,
		Type: chat.Type,
	}
}
