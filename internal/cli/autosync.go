package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// autoFlushBestEffort pushes the queue once after a mutating command. Failures
// are reported but never fail the command; the queue keeps what it could not
// send.
func autoFlushBestEffort(cmd *cobra.Command, app *App) {
	if !remoteConfigured(app.cfg.Remote) {
		return
	}
	ctx, cancel := context.WithTimeout(ctxOf(cmd), 20*time.Second)
	defer cancel()

	if err := app.sess.attachRemote(ctx, app.cfg.Remote); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: auto-flush skipped: %v\n", err)
		return
	}
	if _, err := app.sess.core.FlushNow(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: auto-flush failed: %v\n", err)
	}
}
