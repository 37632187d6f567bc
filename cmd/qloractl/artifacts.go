package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

func newResultsCmd(c *cli) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show evaluation results (the latest run unless --path is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			doc, err := cl.EvaluationResults(ctx, path)
			if err != nil {
				return err
			}
			return writeJSON(c.out, doc)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "results file, relative to the server's project root")
	return cmd
}

func newAdaptersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "Inspect and prune the adapter registry",
	}
	cmd.AddCommand(newAdaptersListCmd(c), newAdaptersDeleteCmd(c))
	return cmd
}

func newAdaptersListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			adapters, err := cl.Adapters(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, adapters)
			}
			return printAdapters(c.out, adapters)
		},
	}
}

func newAdaptersDeleteCmd(c *cli) *cobra.Command {
	var removeFiles, yes bool
	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove an adapter from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if removeFiles && !yes {
				return fmt.Errorf("refusing to delete adapter files without --yes")
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			res, err := cl.DeleteAdapter(ctx, model.AdapterDeleteRequest{Path: args[0], RemoveFiles: removeFiles})
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, res)
			}
			fmt.Fprintf(c.out, "removed %s\n", res.Removed.Label(res.Removed.Path()))
			if res.RemovedFiles {
				fmt.Fprintf(c.out, "deleted files under %s\n", res.Removed.Path())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&removeFiles, "remove-files", false, "also delete the adapter directory")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting files")
	return cmd
}

func newCatalogCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List models, adapters and datasets found on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			cat, err := cl.StorageCatalog(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, cat)
			}
			return printCatalog(c.out, cat)
		},
	}
}
