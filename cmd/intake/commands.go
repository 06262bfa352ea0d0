package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	intake "github.com/goliatone/go-intake"
	"github.com/goliatone/go-intake/internal/app"
	"github.com/goliatone/go-intake/pkg/state"
)

func (c *cli) sectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the registered sections in wizard order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := app.BuildRegistry(c.cfg.Wizard, c.logger)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tTITLE\tPATHS")
			for i, section := range registry.Sections() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, section.ID(), section.Title(), len(intake.DescribePaths(section)))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect or delete the stored application record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store state.Store) error {
				record, ok, err := store.Read(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					c.printf(cmd, "No record saved yet.\n")
					return nil
				}
				return printJSON(cmd, record)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store state.Store) error {
				if err := store.Delete(cmd.Context()); err != nil {
					return err
				}
				c.printf(cmd, "Record deleted.\n")
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) saveCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "save <section>",
		Short:   "Validate a payload and write it as the section's subsection",
		Example: "  intake save demographics --file demographics.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, payload, slot, err := c.check(cmd.Context(), cmd.InOrStdin(), args[0], file)
			if err != nil {
				return err
			}
			if !result.Valid {
				printErrors(cmd, result)
				return fmt.Errorf("section %s is invalid; nothing saved", args[0])
			}
			return c.withStore(cmd.Context(), func(store state.Store) error {
				if err := store.UpdateSubsection(cmd.Context(), args[0], slot); err != nil {
					return err
				}
				c.printf(cmd, "Saved %s (%d fields).\n", args[0], len(payload))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON payload file (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate <section>",
		Short: "Validate a payload against a section without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, slot, err := c.check(cmd.Context(), cmd.InOrStdin(), args[0], file)
			if err != nil {
				return err
			}
			if !result.Valid {
				printErrors(cmd, result)
				return fmt.Errorf("section %s is invalid", args[0])
			}
			c.printf(cmd, "Section %s is valid. Payload that would be saved:\n", args[0])
			return printJSON(cmd, slot)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON payload file (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// check validates the payload in file against section id. It returns the
// rendered payload and the value its record slot would hold.
func (c *cli) check(ctx context.Context, in io.Reader, id, file string) (intake.Result, map[string]any, any, error) {
	registry, err := app.BuildRegistry(c.cfg.Wizard, c.logger)
	if err != nil {
		return intake.Result{}, nil, nil, err
	}
	section, err := registry.Section(id)
	if err != nil {
		return intake.Result{}, nil, nil, err
	}
	var raw []byte
	if file == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return intake.Result{}, nil, nil, fmt.Errorf("read payload: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return intake.Result{}, nil, nil, fmt.Errorf("parse payload: %w", err)
	}
	result, rendered, err := section.Check(ctx, payload)
	if err != nil {
		return intake.Result{}, nil, nil, err
	}
	return result, rendered, section.Slot(rendered), nil
}

func (c *cli) withStore(ctx context.Context, fn func(state.Store) error) error {
	store, closeStore, err := app.OpenStore(ctx, c.cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func printJSON(cmd *cobra.Command, value any) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func printErrors(cmd *cobra.Command, result intake.Result) {
	errs := result.Errors()
	paths := make([]string, 0, len(errs))
	for path := range errs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	w := cmd.ErrOrStderr()
	for _, path := range paths {
		fmt.Fprintf(w, "  %s: %s\n", path, errs[path])
	}
}
