package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/savekit/internal/local"
	"github.com/roach88/savekit/internal/pool"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Encrypted bool
}

// ShowResult is the decoded content of one save.
type ShowResult struct {
	Name      string          `json:"name"`
	Encrypted bool            `json:"encrypted"`
	Content   json.RawMessage `json:"content"`
}

// WriteText prints the content as indented JSON.
func (r ShowResult) WriteText(w io.Writer) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Content, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the content of a local save",
		Long: `Print a local save as JSON. Encrypted saves are decrypted with the
material served by the configured secret endpoint.

Examples:
  savekit show slot1
  savekit show options --encrypted`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Encrypted, "encrypted", false, "the save is encrypted")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command, name string) error {
	ctx := context.Background()

	e, err := opts.openEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	if !e.Local().Exists(name) {
		return NewExitError(ExitFailure, fmt.Sprintf("save %q not found", name))
	}

	got, err := local.TryLoad[json.RawMessage](ctx, e.Local(), name, opts.Encrypted, pool.Sync).Await(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load save", err)
	}
	if !got.Found {
		hint := ""
		if !opts.Encrypted {
			hint = " (try --encrypted)"
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("save %q could not be decoded%s", name, hint))
	}

	return opts.formatter(cmd).Success(ShowResult{
		Name:      name,
		Encrypted: opts.Encrypted,
		Content:   got.Value,
	})
}
