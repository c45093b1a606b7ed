package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
	"github.com/Veraticus/do-one-thing/internal/config"
	"github.com/Veraticus/do-one-thing/internal/storage"
)

func dataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Export, import or erase all stored state",
	}

	cmd.AddCommand(dataExportCmd())
	cmd.AddCommand(dataImportCmd())
	cmd.AddCommand(dataResetCmd())

	return cmd
}

// withState opens the migrated store without building the decision engine.
func withState(ctx context.Context, fn func(*storage.State) error) error {
	store, err := openStore(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(storage.NewState(store, nil))
}

func dataExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every stored document as one JSON object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withState(ctx, func(state *storage.State) error {
				data, err := state.Export(ctx)
				if err != nil {
					return fmt.Errorf("failed to export state: %w", err)
				}

				if len(args) == 0 || args[0] == "-" {
					return writeExport(cmd.OutOrStdout(), data)
				}

				path := config.ExpandPath(args[0])
				if err := config.EnsureDir(path); err != nil {
					return fmt.Errorf("failed to create export directory: %w", err)
				}
				f, err := os.Create(path) //nolint:gosec // user-specified export path
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer func() { _ = f.Close() }()

				if err := writeExport(f, data); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d documents to %s", len(data), path)))
				return nil
			})
		},
	}
}

func writeExport(w io.Writer, data map[string]json.RawMessage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func dataImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore documents written by 'onething data export'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readExport(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return withState(ctx, func(state *storage.State) error {
				if err := state.Import(ctx, data); err != nil {
					return fmt.Errorf("failed to import state: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d documents", len(data))))
				return nil
			})
		},
	}
}

// readExport decodes an export from path, or from stdin when path is "-".
func readExport(stdin io.Reader, path string) (map[string]json.RawMessage, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(config.ExpandPath(path)) //nolint:gosec // user-specified import path
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var data map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("import file contains no documents")
	}
	return data, nil
}

func dataResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase the session, history, statistics, settings and cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			force, _ := cmd.Flags().GetBool("force")

			if !force {
				reader := cli.NewLineReader(cmd.InOrStdin(), cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("This deletes every session, statistic, setting and cached verdict."))
				fmt.Fprint(cmd.OutOrStdout(), cli.FormatPrompt("Are you sure you want to continue? [y/N]"))
				answer, err := reader.ReadLine(ctx)
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Reset canceled."))
					return nil
				}
			}

			return withState(ctx, func(state *storage.State) error {
				if err := state.ClearAll(ctx); err != nil {
					return fmt.Errorf("failed to erase state: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("All stored state erased"))
				return nil
			})
		},
	}

	cmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")
	return cmd
}
