package session

import (
	"context"
	"errors"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/service/cancel"
)

const DefaultHistoryWindow = 5

var (
	ErrBusy         = cancel.ErrBusy
	ErrEmptyMessage = errors.New("message is empty")
)

type PromptResolver interface {
	SystemPrompt(userID int64) string
}

type Reply struct {
	Text     string
	Model    dialog.Model
	Label    string
	Switched bool
}

type Options struct {
	HistoryWindow int
	Temperature   float32
	MaxTokens     int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HistoryWindow: cfg.Dialogs().HistoryWindow,
		Temperature:   cfg.AI().Temperature,
		MaxTokens:     cfg.AI().MaxTokens,
	}
}

// Service runs chat turns on top of the dialog store and the model router.
type Service struct {
	store   *dialog.Store
	router  *router.Router
	prompts PromptResolver
	guard   *cancel.Manager
	opts    Options
	logger  logger.Logger
}

func NewService(
	store *dialog.Store,
	r *router.Router,
	prompts PromptResolver,
	guard *cancel.Manager,
	opts Options,
	log logger.Logger,
) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if guard == nil {
		guard = cancel.NewManager()
	}
	return &Service{
		store:   store,
		router:  r,
		prompts: prompts,
		guard:   guard,
		opts:    opts,
		logger:  logger.Component(log, "session"),
	}
}

// HandleUserMessage runs one turn. The user message stays recorded when the
// backends fail, and an auto-switch is committed even if the primary failed too.
// The turn stays on the dialog that received the user message, even when
// another dialog becomes active while the backend is answering.
func (s *Service) HandleUserMessage(ctx context.Context, userID int64, text string) (Reply, error) {
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}

	turnCtx, release, err := s.guard.Acquire(ctx, userID, "chat")
	if err != nil {
		return Reply{}, err
	}
	defer release()

	d := s.store.AddMessage(turnCtx, userID, dialog.RoleUser, text, "")
	model := d.CurrentModel

	req := ai.Request{
		Message:     text,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
		History:     s.history(d),
	}
	if s.prompts != nil {
		req.SystemPrompt = s.prompts.SystemPrompt(userID)
	}

	log := s.logger.WithFields(logger.Fields{
		"user_id":   userID,
		"dialog_id": d.ID,
		"model":     model.String(),
	})

	result, err := s.router.Route(turnCtx, model, req)
	if result.Switched {
		if s.store.SwitchDialogModel(userID, d.ID, dialog.ModelPrimary) {
			log.Warn("Switched dialog to primary model")
		}
	}

	reply := Reply{
		Model:    result.Model,
		Label:    result.Label(),
		Switched: result.Switched,
	}
	if err != nil {
		log.WithError(err).Error("Failed to get model reply")
		return reply, err
	}

	if _, err := s.store.AddMessageTo(turnCtx, userID, d.ID, dialog.RoleAssistant, result.Reply, result.Model); err != nil {
		log.WithError(err).Warn("Dialog evicted before the reply was recorded")
	}
	reply.Text = result.Reply

	log.WithField("label", reply.Label).Debug("Turn completed")
	return reply, nil
}

// history is the tail of the dialog without the message just appended.
func (s *Service) history(d *dialog.Dialog) []ai.Message {
	messages := d.Messages
	if len(messages) > s.opts.HistoryWindow {
		messages = messages[len(messages)-s.opts.HistoryWindow:]
	}
	if len(messages) == 0 {
		return nil
	}
	messages = messages[:len(messages)-1]

	result := make([]ai.Message, 0, len(messages))
	for _, msg := range messages {
		result = append(result, ai.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return result
}

func (s *Service) NewDialog(userID int64) *dialog.Dialog {
	return s.store.CreateDialog(userID, s.store.ActiveModel(userID))
}

func (s *Service) ListDialogs(userID int64) []dialog.Summary {
	return s.store.List(userID)
}

func (s *Service) ActiveDialog(userID int64) (*dialog.Dialog, bool) {
	return s.store.ActiveDialog(userID)
}

func (s *Service) Export(userID int64, dialogID string) (string, error) {
	return s.store.Export(userID, dialogID)
}

func (s *Service) Clear(userID int64) bool {
	return s.store.ClearDialog(userID)
}

func (s *Service) SwitchModel(userID int64, model dialog.Model) bool {
	return s.store.SwitchModel(userID, model)
}

func (s *Service) CurrentModel(userID int64) dialog.Model {
	return s.store.ActiveModel(userID)
}

// Cancel aborts the user's running turn, if any.
func (s *Service) Cancel(userID int64) bool {
	return s.guard.Cancel(userID)
}
