package docgroup

import (
	"github.com/logiport/logiport/internal/docgroup/repository"
	"github.com/logiport/logiport/internal/docgroup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("docgroup.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
