package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replwin/console"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/appconfig"
	"pkt.systems/replwin/schema"
)

func newReplCmd() *cobra.Command {
	var cfgPath string
	var sessionName string
	var noConfig bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session on this terminal",
		Long: "Start an interactive session on this terminal. When standard input is not a " +
			"terminal, it is read as one submission and the output is written to standard output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cfg, noConfig)
			if err != nil {
				return err
			}
			attached, err := rt.open(ctx, sessionName)
			if err != nil {
				return err
			}
			defer attached.Release()
			in, ok := cmd.InOrStdin().(*os.File)
			if ok {
				err = console.RunLocal(ctx, in, cmd.OutOrStdout(), attached)
				if !errors.Is(err, console.ErrNotTerminal) {
					return err
				}
			}
			return runScript(ctx, attached.Session, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "restore and save the transcript under this name")
	cmd.Flags().BoolVar(&noConfig, "noconfig", false, "skip the evaluator startup script")
	return cmd
}

// runScript submits everything read from in and writes the output it
// produced, with plain line breaks. Error output goes to errOut.
func runScript(ctx context.Context, session *core.Session, in io.Reader, out, errOut io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	before := len(session.Snapshot())
	code := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(code) != "" {
		if err := session.Submit(ctx, code); err != nil {
			return err
		}
	}
	blocks := session.Snapshot()
	written := 0
	for _, block := range blocks[min(before, len(blocks)):] {
		if block.Kind != schema.SpanOutput {
			continue
		}
		dst := out
		if block.Error {
			dst = errOut
		}
		n, err := io.WriteString(dst, strings.ReplaceAll(block.Content, "\r\n", "\n"))
		written += n
		if err != nil {
			return err
		}
	}
	pslog.Ctx(ctx).Debug("script done", "bytes", written)
	return nil
}
