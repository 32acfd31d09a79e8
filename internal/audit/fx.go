package audit

import (
	"github.com/logiport/logiport/internal/audit/repository"
	"github.com/logiport/logiport/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
