package employee

import (
	"github.com/ledgerline/dunning/internal/employee/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("employee",
	fx.Provide(repository.Provide),
)
