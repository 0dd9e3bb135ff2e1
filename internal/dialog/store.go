package dialog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/transcript"
)

const (
	DefaultMaxMessages = 20
	DefaultMaxDialogs  = 10

	idLength  = 6
	idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type dialogState struct {
	id           string
	userID       int64
	createdAt    time.Time
	lastActivity time.Time
	model        Model
	messages     *history
}

func (d *dialogState) snapshot() *Dialog {
	return &Dialog{
		UserID:       d.userID,
		ID:           d.id,
		Messages:     d.messages.all(),
		CreatedAt:    d.createdAt,
		LastActivity: d.lastActivity,
		CurrentModel: d.model,
	}
}

type userState struct {
	dialogs []*dialogState // creation order
	active  string
}

func (u *userState) find(id string) *dialogState {
	for _, d := range u.dialogs {
		if d.id == id {
			return d
		}
	}
	return nil
}

func (u *userState) activeDialog() *dialogState {
	if u == nil || u.active == "" {
		return nil
	}
	return u.find(u.active)
}

// Store owns every dialog of every user. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	users map[int64]*userState
	used  map[string]struct{}

	maxMessages int
	maxDialogs  int

	now    func() time.Time
	newID  func() string
	sink   transcript.Sink
	logger logger.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the random id source. Collisions are retried.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func WithSink(sink transcript.Sink) Option {
	return func(s *Store) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func NewStore(cfg config.DialogsConfig, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		users:       make(map[int64]*userState),
		used:        make(map[string]struct{}),
		maxMessages: cfg.MaxMessages,
		maxDialogs:  cfg.MaxDialogs,
		now:         time.Now,
		newID:       randomID,
		sink:        transcript.Discard,
		logger:      logger.Component(log, "dialogs"),
	}
	if s.maxMessages <= 0 {
		s.maxMessages = DefaultMaxMessages
	}
	if s.maxDialogs <= 0 {
		s.maxDialogs = DefaultMaxDialogs
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idCharset[rand.IntN(len(idCharset))]
	}
	return string(b)
}

func (s *Store) user(userID int64) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{}
		s.users[userID] = u
	}
	return u
}

func (s *Store) allocateID() string {
	for {
		id := s.newID()
		if _, taken := s.used[id]; !taken {
			s.used[id] = struct{}{}
			return id
		}
	}
}

// createLocked must be called with s.mu held.
func (s *Store) createLocked(userID int64, model Model) *dialogState {
	if !model.Valid() {
		model = ModelPrimary
	}

	u := s.user(userID)
	if len(u.dialogs) >= s.maxDialogs {
		evicted := u.dialogs[0]
		u.dialogs = u.dialogs[1:]
		delete(s.used, evicted.id)
		s.logger.WithFields(logger.Fields{
			"user_id":   userID,
			"dialog_id": evicted.id,
		}).Debug("Oldest dialog evicted")
	}

	now := s.now()
	d := &dialogState{
		id:           s.allocateID(),
		userID:       userID,
		createdAt:    now,
		lastActivity: now,
		model:        model,
		messages:     newHistory(s.maxMessages),
	}
	u.dialogs = append(u.dialogs, d)
	u.active = d.id

	s.logger.WithFields(logger.Fields{
		"user_id":   userID,
		"dialog_id": d.id,
		"model":     model,
	}).Info("Dialog created")

	return d
}

func (s *Store) CreateDialog(userID int64, model Model) *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(userID, model).snapshot()
}

func (s *Store) ActiveDialog(userID int64) (*Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.users[userID].activeDialog()
	if d == nil {
		return nil, false
	}
	return d.snapshot(), true
}

func (s *Store) Dialog(userID int64, id string) (*Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	d := u.find(id)
	if d == nil {
		return nil, false
	}
	return d.snapshot(), true
}

// AddMessage appends to the active dialog, creating one when none is active.
// An empty model tags the message with the dialog's current model.
// Transcript errors are logged and never returned.
func (s *Store) AddMessage(ctx context.Context, userID int64, role Role, content string, model Model) *Dialog {
	s.mu.Lock()
	d := s.users[userID].activeDialog()
	if d == nil {
		// inherits ActiveModel, which is PRIMARY without an active dialog
		d = s.createLocked(userID, ModelPrimary)
	}
	snapshot, msg := s.appendLocked(d, role, content, model)
	s.mu.Unlock()

	s.writeTranscript(ctx, userID, snapshot.ID, msg)
	return snapshot
}

// AddMessageTo appends to the dialog with the given id whether or not it is
// still active. ErrDialogNotFound is returned once the dialog was evicted.
func (s *Store) AddMessageTo(ctx context.Context, userID int64, dialogID string, role Role, content string, model Model) (*Dialog, error) {
	s.mu.Lock()
	var d *dialogState
	if u, ok := s.users[userID]; ok {
		d = u.find(dialogID)
	}
	if d == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDialogNotFound, dialogID)
	}
	snapshot, msg := s.appendLocked(d, role, content, model)
	s.mu.Unlock()

	s.writeTranscript(ctx, userID, dialogID, msg)
	return snapshot, nil
}

// appendLocked must be called with s.mu held.
func (s *Store) appendLocked(d *dialogState, role Role, content string, model Model) (*Dialog, Message) {
	if model == "" {
		model = d.model
	}
	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Model:     model,
	}
	d.messages.push(msg)
	d.lastActivity = msg.Timestamp
	return d.snapshot(), msg
}

func (s *Store) writeTranscript(ctx context.Context, userID int64, dialogID string, msg Message) {
	record := transcript.Record{
		UserID:    userID,
		DialogID:  dialogID,
		Timestamp: msg.Timestamp,
		Role:      string(msg.Role),
		Model:     msg.Model.String(),
		Content:   msg.Content,
	}
	if err := s.sink.Append(ctx, record); err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{
			"user_id":   userID,
			"dialog_id": dialogID,
		}).Error("Failed to write transcript")
	}
}

// ClearDialog deactivates the active dialog. The dialog and its id are kept.
func (s *Store) ClearDialog(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.active == "" {
		return false
	}
	u.active = ""

	s.logger.WithField("user_id", userID).Info("Active dialog cleared")
	return true
}

// SwitchModel changes the active dialog's model or starts a dialog with it.
// Returns false only for an unknown model.
func (s *Store) SwitchModel(userID int64, model Model) bool {
	if !model.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.users[userID].activeDialog()
	if d == nil {
		s.createLocked(userID, model)
		return true
	}
	s.setModelLocked(d, model)
	return true
}

// SwitchDialogModel changes the model of the dialog with the given id. It never
// creates a dialog and reports false when the id or the model is unknown.
func (s *Store) SwitchDialogModel(userID int64, dialogID string, model Model) bool {
	if !model.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false
	}
	d := u.find(dialogID)
	if d == nil {
		return false
	}
	s.setModelLocked(d, model)
	return true
}

func (s *Store) setModelLocked(d *dialogState, model Model) {
	s.logger.WithFields(logger.Fields{
		"user_id":   d.userID,
		"dialog_id": d.id,
		"from":      d.model,
		"to":        model,
	}).Info("Model switched")
	d.model = model
}

func (s *Store) ActiveModel(userID int64) Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d := s.users[userID].activeDialog(); d != nil {
		return d.model
	}
	return ModelPrimary
}

func (s *Store) List(userID int64) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}

	summaries := make([]Summary, 0, len(u.dialogs))
	for _, d := range u.dialogs {
		summaries = append(summaries, Summary{
			ID:           d.id,
			CreatedAt:    d.createdAt,
			LastActivity: d.lastActivity,
			MessageCount: d.messages.len(),
			Model:        d.model,
		})
	}
	return summaries
}

// History returns up to n newest messages of the active dialog.
func (s *Store) History(userID int64, n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.users[userID].activeDialog()
	if d == nil || n <= 0 {
		return nil
	}
	return d.messages.last(n)
}

func (s *Store) Export(userID int64, id string) (string, error) {
	d, ok := s.Dialog(userID, id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDialogNotFound, id)
	}
	return Render(d), nil
}
