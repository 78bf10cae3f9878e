package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/client"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent generations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		list, err := c.ListGenerations(ctx, listLimit)
		if err != nil {
			return err
		}
		printGenerations(cmd.OutOrStdout(), list.Generations)
		fmt.Fprintf(cmd.OutOrStdout(), "showing %d of %d\n", len(list.Generations), list.Total)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		g, err := c.GetGeneration(ctx, args[0])
		if err != nil {
			return err
		}
		printGenerations(cmd.OutOrStdout(), []client.Generation{*g})
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", client.DefaultListLimit, "number of generations (1-20)")
	rootCmd.AddCommand(listCmd, getCmd)
}

func printGenerations(out io.Writer, gens []client.Generation) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTYLE\tCREATED\tRESULT\tPROMPT")
	for _, g := range gens {
		result := "-"
		if g.ResultImageURL != nil {
			result = *g.ResultImageURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Status, g.Style, g.CreatedAt.Format(time.DateTime), result, truncate(g.Prompt, 40))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// waitTerminal polls until the generation finishes or ctx ends.
func waitTerminal(ctx context.Context, c *client.Client, id string, every time.Duration) (*client.Generation, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		g, err := c.GetGeneration(reqCtx, id)
		cancel()
		if err != nil {
			return nil, err
		}
		if g.Terminal() {
			return g, nil
		}
		select {
		case <-ctx.Done():
			return g, ctx.Err()
		case <-ticker.C:
		}
	}
}
