// Package control exposes the agent's command channel over HTTP and provides
// the client the CLI commands use to reach it.
package control

import (
	"context"

	"github.com/The-Promised-Neverland/navlink/internal/agent"
	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// Agent is the part of the publisher a controller drives.
type Agent interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Status() agent.Status
	State() agent.State
}

type Controller struct {
	agent    Agent
	handlers map[string]func(ctx context.Context) models.Response
}

func NewController(a Agent) *Controller {
	c := &Controller{
		agent:    a,
		handlers: make(map[string]func(ctx context.Context) models.Response),
	}
	c.registerHandlers()
	return c
}

func (c *Controller) registerHandlers() {
	c.handlers[models.CommandConnect] = func(ctx context.Context) models.Response {
		if err := c.agent.Connect(ctx); err != nil {
			logger.Log.Warn("Connect command not applied", "err", err)
		}
		return models.Response{}
	}
	c.handlers[models.CommandDisconnect] = func(ctx context.Context) models.Response {
		if err := c.agent.Disconnect(ctx); err != nil {
			logger.Log.Warn("Disconnect command not applied", "err", err)
		}
		return models.Response{}
	}
	c.handlers[models.CommandGetStatus] = func(context.Context) models.Response {
		return models.Response{Result: c.agent.Status().String()}
	}
}

// Handle always answers. Unknown commands get an empty response.
func (c *Controller) Handle(ctx context.Context, cmd models.Command) models.Response {
	handler, ok := c.handlers[cmd.Type]
	if !ok {
		logger.Log.Debug("No handler for command", "type", cmd.Type)
		return models.Response{}
	}
	return handler(ctx)
}
