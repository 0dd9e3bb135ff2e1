package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/service/cancel"
)

type mockBackend struct {
	mock.Mock
	name     string
	mu       sync.Mutex
	requests []ai.Request
}

func (m *mockBackend) Name() string {
	return m.name
}

func (m *mockBackend) Send(ctx context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) lastRequest() ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type staticPrompts string

func (p staticPrompts) SystemPrompt(int64) string {
	return string(p)
}

type fixture struct {
	service   *Service
	store     *dialog.Store
	primary   *mockBackend
	secondary *mockBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger()
	primary := &mockBackend{name: "gigachat"}
	secondary := &mockBackend{name: "deepseek"}
	store := dialog.NewStore(config.DialogsConfig{}, log)
	r := router.New(primary, secondary, time.Second, log)
	svc := NewService(store, r, staticPrompts("Ты полезный ассистент."), cancel.NewManager(), Options{
		Temperature: 0.87,
		MaxTokens:   1024,
	}, log)
	return &fixture{service: svc, store: store, primary: primary, secondary: secondary}
}

func TestHandleUserMessage(t *testing.T) {
	f := newFixture(t)
	f.primary.On("Send", mock.Anything, mock.Anything).Return("Привет!", nil)

	reply, err := f.service.HandleUserMessage(context.Background(), 1, "Привет")
	require.NoError(t, err)

	assert.Equal(t, Reply{Text: "Привет!", Model: dialog.ModelPrimary, Label: "PRIMARY"}, reply)

	req := f.primary.lastRequest()
	assert.Equal(t, "Привет", req.Message)
	assert.Equal(t, "Ты полезный ассистент.", req.SystemPrompt)
	assert.Equal(t, float32(0.87), req.Temperature)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Empty(t, req.History)

	d, ok := f.service.ActiveDialog(1)
	require.True(t, ok)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, dialog.RoleUser, d.Messages[0].Role)
	assert.Equal(t, dialog.RoleAssistant, d.Messages[1].Role)
	assert.Equal(t, dialog.ModelPrimary, d.Messages[1].Model)
}

func TestHandleUserMessage_HistoryWindow(t *testing.T) {
	f := newFixture(t)
	f.primary.On("Send", mock.Anything, mock.Anything).Return("ok", nil)

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.service.HandleUserMessage(ctx, 1, text)
		require.NoError(t, err)
	}

	_, err := f.service.HandleUserMessage(ctx, 1, "four")
	require.NoError(t, err)

	// window of five includes "four" itself, which is sent separately
	req := f.primary.lastRequest()
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleUser, Content: "two"},
		{Role: ai.RoleAssistant, Content: "ok"},
		{Role: ai.RoleUser, Content: "three"},
		{Role: ai.RoleAssistant, Content: "ok"},
	}, req.History)
	assert.Equal(t, "four", req.Message)
}

func TestHandleUserMessage_AutoSwitch(t *testing.T) {
	f := newFixture(t)
	f.secondary.On("Send", mock.Anything, mock.Anything).Return("", &ai.BackendError{Backend: "deepseek", HTTPStatusCode: 402})
	f.primary.On("Send", mock.Anything, mock.Anything).Return("ответ", nil)

	require.True(t, f.service.SwitchModel(1, dialog.ModelSecondary))

	reply, err := f.service.HandleUserMessage(context.Background(), 1, "вопрос")
	require.NoError(t, err)

	assert.True(t, reply.Switched)
	assert.Equal(t, "PRIMARY (auto-switched)", reply.Label)
	assert.Equal(t, dialog.ModelPrimary, f.service.CurrentModel(1))

	d, _ := f.service.ActiveDialog(1)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, dialog.ModelSecondary, d.Messages[0].Model)
	assert.Equal(t, dialog.ModelPrimary, d.Messages[1].Model)
}

func TestHandleUserMessage_AllBackendsFail(t *testing.T) {
	f := newFixture(t)
	f.secondary.On("Send", mock.Anything, mock.Anything).Return("", errors.New("down"))
	f.primary.On("Send", mock.Anything, mock.Anything).Return("", &ai.BackendError{Backend: "gigachat", HTTPStatusCode: 503})

	f.service.SwitchModel(1, dialog.ModelSecondary)

	reply, err := f.service.HandleUserMessage(context.Background(), 1, "вопрос")
	require.Error(t, err)

	var backendErr *ai.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, 503, backendErr.HTTPStatusCode)
	assert.True(t, reply.Switched)
	assert.Empty(t, reply.Text)

	assert.Equal(t, dialog.ModelPrimary, f.service.CurrentModel(1))
	d, _ := f.service.ActiveDialog(1)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, "вопрос", d.Messages[0].Content)
}

func TestHandleUserMessage_EmptyMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleUserMessage(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	f.primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleUserMessage_Cancel(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	f.primary.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.Canceled)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.service.HandleUserMessage(context.Background(), 1, "long question")
		errCh <- err
	}()

	<-started
	assert.True(t, f.service.Cancel(1))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("turn was not cancelled")
	}
	assert.False(t, f.service.Cancel(1))
}

func TestHandleUserMessage_BusyUser(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	unblock := make(chan struct{})
	f.primary.On("Send", mock.Anything, mock.MatchedBy(func(req ai.Request) bool {
		return req.Message == "first"
	})).Run(func(mock.Arguments) {
		close(started)
		<-unblock
	}).Return("done", nil)
	f.primary.On("Send", mock.Anything, mock.Anything).Return("other", nil)

	go func() {
		_, _ = f.service.HandleUserMessage(context.Background(), 1, "first")
	}()
	<-started

	ctx, cancelWait := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelWait()
	_, err := f.service.HandleUserMessage(ctx, 1, "second")
	assert.ErrorIs(t, err, ErrBusy)

	reply, err := f.service.HandleUserMessage(context.Background(), 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, "other", reply.Text)

	close(unblock)
}

func TestDialogOperations(t *testing.T) {
	f := newFixture(t)

	first := f.service.NewDialog(1)
	f.service.SwitchModel(1, dialog.ModelSecondary)
	second := f.service.NewDialog(1)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, dialog.ModelSecondary, second.CurrentModel)

	assert.Len(t, f.service.ListDialogs(1), 2)

	text, err := f.service.Export(1, first.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "Диалог #"+first.ID)

	_, err = f.service.Export(1, "zzzzzz")
	assert.ErrorIs(t, err, dialog.ErrDialogNotFound)

	assert.True(t, f.service.Clear(1))
	assert.False(t, f.service.Clear(1))
	assert.Equal(t, dialog.ModelPrimary, f.service.CurrentModel(1))
}

// blockOn makes backend wait on release for the given message and reports when it got there.
func blockOn(backend *mockBackend, message string, reply string, err error) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	backend.On("Send", mock.Anything, mock.MatchedBy(func(req ai.Request) bool {
		return req.Message == message
	})).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(reply, err).Once()
	return started, release
}

func TestHandleUserMessage_NewDialogDuringTurn(t *testing.T) {
	f := newFixture(t)
	started, release := blockOn(f.primary, "вопрос", "ответ", nil)

	first := f.service.NewDialog(1)

	done := make(chan error, 1)
	go func() {
		_, err := f.service.HandleUserMessage(context.Background(), 1, "вопрос")
		done <- err
	}()
	<-started

	second := f.service.NewDialog(1)
	close(release)
	require.NoError(t, <-done)

	d, ok := f.store.Dialog(1, first.ID)
	require.True(t, ok)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, dialog.RoleUser, d.Messages[0].Role)
	assert.Equal(t, dialog.RoleAssistant, d.Messages[1].Role)
	assert.Equal(t, "ответ", d.Messages[1].Content)

	active, ok := f.service.ActiveDialog(1)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
	assert.Empty(t, active.Messages)
}

func TestHandleUserMessage_ClearDuringSwitchedTurn(t *testing.T) {
	f := newFixture(t)
	f.secondary.On("Send", mock.Anything, mock.Anything).Return("", errors.New("down"))
	started, release := blockOn(f.primary, "вопрос", "ответ", nil)

	require.True(t, f.service.SwitchModel(1, dialog.ModelSecondary))
	original, _ := f.service.ActiveDialog(1)

	done := make(chan Reply, 1)
	go func() {
		reply, _ := f.service.HandleUserMessage(context.Background(), 1, "вопрос")
		done <- reply
	}()
	<-started

	require.True(t, f.service.Clear(1))
	close(release)
	reply := <-done
	assert.True(t, reply.Switched)
	assert.Equal(t, "ответ", reply.Text)

	// no stray dialog is started for the reply
	summaries := f.service.ListDialogs(1)
	require.Len(t, summaries, 1)
	assert.Equal(t, original.ID, summaries[0].ID)
	assert.Equal(t, dialog.ModelPrimary, summaries[0].Model)
	assert.Equal(t, 2, summaries[0].MessageCount)

	_, ok := f.service.ActiveDialog(1)
	assert.False(t, ok)
}
