package cmd

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
	"github.com/kidoz/display-priority-manager/internal/fixer"
)

func initFixer(cfg *config.Config, log *zap.Logger) (*fixer.Fixer, error) {
	var f *fixer.Fixer
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, log),
		fixer.Module,
		fx.Populate(&f),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return f, nil
}
