package commands

import (
	"context"

	"github.com/neuroasura/neuroasura/internal/telegram"
)

type Command interface {
	Name() string
	Aliases() []string
	Handle(ctx context.Context, update telegram.Update) error
	Execute(ctx context.Context, update telegram.Update) error
}
