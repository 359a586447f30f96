package cli

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

func writeJSON(cmd *cobra.Command, v any) error {
	enc := sonic.ConfigStd.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOut(cmd *cobra.Command, app *App, v any, text string) error {
	if app.JSON {
		return writeJSON(cmd, v)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}
