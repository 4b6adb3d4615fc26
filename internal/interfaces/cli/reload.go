package cli

import (
	"github.com/turtacn/rxntd/internal/config"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
)

// watchConfig applies edits of the loaded config file to a running
// pipeline. Only the log level and the descriptor families are reloaded;
// backends keep the settings they started with. It does nothing when the
// configuration came from the environment alone.
func watchConfig(cc *CLIContext, p *pipeline) error {
	if cc.ConfigPath == "" {
		return nil
	}
	err := config.Watch(cc.ConfigPath,
		func(cfg *config.Config) { applyConfig(cc, p, cfg) },
		func(err error) { cc.Logger.Warn("config change rejected", logging.Err(err)) })
	if err != nil {
		return err
	}
	cc.Logger.Info("watching config file", logging.String("path", cc.ConfigPath))
	return nil
}

func applyConfig(cc *CLIContext, p *pipeline, cfg *config.Config) {
	if !cc.levelPinned && logging.SetLevel(cc.Logger, cfg.Log.Level) {
		cc.Logger.Info("log level applied", logging.String("level", cfg.Log.Level))
	}
	if err := p.reloadFamilies(cfg); err != nil {
		cc.Logger.Warn("descriptor families not reloaded, keeping current", logging.Err(err))
	}
}
