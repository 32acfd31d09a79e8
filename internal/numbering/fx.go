package numbering

import (
	"github.com/logiport/logiport/internal/numbering/repository"
	"github.com/logiport/logiport/internal/numbering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("numbering.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
