package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sehatbridge/sehatauth/sequence"
)

func sequenceCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect or advance named counters",
	}

	run := func(op func(ctx context.Context, gen sequence.Generator, name string) (int64, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			b, err := openBackends(ctx, settings, zerolog.Nop())
			if err != nil {
				return err
			}
			defer b.Close()

			v, err := op(ctx, b.seq, args[0])
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), v)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "next <name>",
		Short: "Allocate and print the next value",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, gen sequence.Generator, name string) (int64, error) {
			return gen.Next(ctx, name)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "current <name>",
		Short: "Print the last allocated value without advancing",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, gen sequence.Generator, name string) (int64, error) {
			return gen.Current(ctx, name)
		}),
	})
	return cmd
}

func printValue(w io.Writer, v int64) error {
	_, err := fmt.Fprintln(w, v)
	return err
}
