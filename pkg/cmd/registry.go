package cmd

import (
	"log/slog"

	"github.com/threadlinehq/threadline/pkg/handlers/branch"
	"github.com/threadlinehq/threadline/pkg/handlers/createticket"
	"github.com/threadlinehq/threadline/pkg/handlers/delay"
	"github.com/threadlinehq/threadline/pkg/handlers/end"
	"github.com/threadlinehq/threadline/pkg/handlers/respondai"
	"github.com/threadlinehq/threadline/pkg/handlers/sendmessage"
	"github.com/threadlinehq/threadline/pkg/handlers/sendwebhook"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/registry"
)

// HandlerDeps are the external collaborators the node handlers need.
type HandlerDeps struct {
	AI        protocol.AIClient
	Messenger protocol.Messenger
	Ticketer  protocol.Ticketer
}

// NewRegistry builds the handler registry with every built-in node type.
func NewRegistry(logger *slog.Logger, deps HandlerDeps) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(respondai.NewFactory(deps.AI))
	reg.Register(createticket.NewFactory(deps.Ticketer))
	reg.Register(sendmessage.NewFactory(deps.Messenger))
	reg.Register(sendwebhook.NewFactory())
	reg.Register(branch.NewFactory())
	reg.Register(delay.NewFactory())
	reg.Register(end.NewFactory())

	return reg
}
