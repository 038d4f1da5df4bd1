package common

import (
	"errors"

	"github.com/spf13/cobra"
)

// FromCommand returns the AppContext installed by the root command's
// PersistentPreRunE.
func FromCommand(cmd *cobra.Command) (*AppContext, error) {
	app, ok := cmd.Context().Value(ContextKeyApp).(*AppContext)
	if !ok || app == nil || app.Manager == nil {
		return nil, errors.New("application context is not initialized")
	}
	return app, nil
}
