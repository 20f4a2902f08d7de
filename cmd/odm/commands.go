package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goforj/odm/docstore"
	"github.com/goforj/odm/internal/app"
)

func (c *cli) demoCmd() *cobra.Command {
	var (
		kind  string
		attrs string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk one document through save, cached lookup, eviction and delete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var values map[string]any
			if err := json.Unmarshal([]byte(attrs), &values); err != nil {
				return fmt.Errorf("--attrs: %w", err)
			}
			return c.app.CacheDemo(cmd.Context(), cmd.OutOrStdout(), kind, values)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "MiModelo", "document kind to use")
	cmd.Flags().StringVar(&attrs, "attrs", `{"nombre":"Alex","apellido":"gomez","edad":20}`, "attributes as a JSON object")
	return cmd
}

func (c *cli) kindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List registered document kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kind := range c.app.Registry.Kinds() {
				m, _ := c.app.Registry.Model(kind)
				s := m.Schema()
				fmt.Fprintf(cmd.OutOrStdout(), "%s required=%v admissible=%v\n", kind, s.Required(), s.Admissible())
			}
			return nil
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <kind> <attrs-json>",
		Short: "Create and save a document, printing its snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values map[string]any
			if err := json.Unmarshal([]byte(args[1]), &values); err != nil {
				return fmt.Errorf("attributes: %w", err)
			}
			doc, err := c.app.Registry.New(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			if err := doc.Save(cmd.Context()); err != nil {
				return err
			}
			snap, err := doc.Snapshot()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Look a document up by identity, cache first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			snap, ok, err := m.FindByID(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s %s not found", args[0], args[1])
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func (c *cli) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <kind> [filter-json]",
		Short: "Print every document matching a filter, one JSON object per line",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			filter := docstore.Filter{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &filter); err != nil {
					return fmt.Errorf("filter: %w", err)
				}
			}
			cur, err := m.Find(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for doc, err := range cur.All(cmd.Context()) {
				if err != nil {
					return err
				}
				snap, err := doc.Snapshot()
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), snap); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <kind> <pipeline-json>",
		Short: "Run an aggregation pipeline and print its raw results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			var pipeline docstore.Pipeline
			if err := json.Unmarshal([]byte(args[1]), &pipeline); err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
			ctx := cmd.Context()
			cur, err := m.Aggregate(ctx, pipeline)
			if err != nil {
				return err
			}
			defer cur.Close(ctx)
			for cur.Next(ctx) {
				if err := writeJSON(cmd.OutOrStdout(), cur.Current()); err != nil {
					return err
				}
			}
			return cur.Err()
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a document from the store and the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			doc, ok, err := m.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s %s not found", args[0], args[1])
			}
			_, err = doc.Delete(cmd.Context())
			return err
		},
	}
}

func (c *cli) helpdeskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "User sessions and the support ticket queue (redis cache only)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Register users, log in and attend queued tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.HelpdeskDemo(cmd.Context(), cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "Print the number of queued tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.app.Desk == nil {
				return app.ErrNoDesk
			}
			n, err := c.app.Desk.Pending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "attend",
		Short: "Pop and print the highest priority ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.app.Desk == nil {
				return app.ErrNoDesk
			}
			t, ok, err := c.app.Desk.AttendTicket(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending tickets")
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), t)
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
