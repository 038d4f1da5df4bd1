package common

import (
	"duplo/internal/app/manager"
	"duplo/internal/infra/config"
	"duplo/internal/infra/logging"
)

type contextKey string

const ContextKeyApp contextKey = "appctx"

type GlobalOptions struct {
	DryRun     bool
	Debug      bool
	Yes        bool
	JSON       bool
	NoOpLog    bool
	ConfigFile string
}

type AppContext struct {
	Options   GlobalOptions
	Settings  config.Settings
	Whitelist []string
	Logger    logging.Logger
	Manager   *manager.Manager
}
