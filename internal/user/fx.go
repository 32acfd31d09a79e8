package user

import (
	"github.com/logiport/logiport/internal/user/repository"
	"github.com/logiport/logiport/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
