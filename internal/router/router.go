package router

import (
	"context"
	"time"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultTimeout = 60 * time.Second

	autoSwitchedSuffix = " (auto-switched)"
)

// Result describes which backend answered. Switched is set whenever the
// secondary backend failed, even if the primary then failed too.
type Result struct {
	Reply    string
	Model    dialog.Model
	Switched bool
}

// Label is PRIMARY, SECONDARY or "PRIMARY (auto-switched)".
func (r Result) Label() string {
	if r.Switched {
		return r.Model.String() + autoSwitchedSuffix
	}
	return r.Model.String()
}

// Router picks a backend for the requested model and falls back from the
// secondary to the primary once. It never mutates dialog state.
type Router struct {
	primary   ai.Backend
	secondary ai.Backend
	timeout   time.Duration
	logger    logger.Logger
}

func New(primary, secondary ai.Backend, timeout time.Duration, log logger.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		logger:    logger.Component(log, "router"),
	}
}

func (r *Router) Backend(model dialog.Model) ai.Backend {
	if model == dialog.ModelSecondary {
		return r.secondary
	}
	return r.primary
}

func (r *Router) Route(ctx context.Context, model dialog.Model, req ai.Request) (Result, error) {
	if model != dialog.ModelSecondary {
		reply, err := r.send(ctx, r.primary, req)
		if err != nil {
			return Result{Model: dialog.ModelPrimary}, err
		}
		return Result{Reply: reply, Model: dialog.ModelPrimary}, nil
	}

	reply, err := r.send(ctx, r.secondary, req)
	if err == nil {
		return Result{Reply: reply, Model: dialog.ModelSecondary}, nil
	}

	r.logger.WithError(err).WithField("backend", backendName(r.secondary)).Warn("Secondary backend failed, falling back to primary")

	result := Result{Model: dialog.ModelPrimary, Switched: true}
	// the secondary may have consumed the caller's deadline
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ai.AsBackendError(ctxErr, backendName(r.primary), req.Model)
	}

	// model ids are backend specific, let the primary use its default
	fallback := req
	fallback.Model = ""
	reply, err = r.send(ctx, r.primary, fallback)
	if err != nil {
		return result, err
	}
	result.Reply = reply
	return result, nil
}

func (r *Router) send(ctx context.Context, backend ai.Backend, req ai.Request) (string, error) {
	if backend == nil {
		return "", &ai.BackendError{Message: "backend is not configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := backend.Send(callCtx, req)
	if err != nil {
		return "", ai.AsBackendError(err, backend.Name(), req.Model)
	}
	return reply, nil
}

func backendName(backend ai.Backend) string {
	if backend == nil {
		return ""
	}
	return backend.Name()
}
