package transaction

import (
	"github.com/logiport/logiport/internal/transaction/repository"
	"github.com/logiport/logiport/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
