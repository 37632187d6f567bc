package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/internal/client"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

// submitFlags are shared by every submit command.
type submitFlags struct {
	follow   bool
	interval time.Duration
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "follow the job's log until it finishes")
	cmd.Flags().DurationVar(&f.interval, "interval", time.Second, "poll interval in follow mode")
}

// submitted prints the new job id and, when following, tails it to completion.
func (c *cli) submitted(cmd *cobra.Command, cl *client.Client, resp model.SubmitResponse, f submitFlags) error {
	if c.jsonOutput && !f.follow {
		return writeJSON(c.out, resp)
	}
	fmt.Fprintf(c.out, "%s %s\n", resp.JobID, resp.Status)
	if !f.follow {
		return nil
	}

	j, err := cl.Follow(cmd.Context(), resp.JobID, client.FollowOptions{
		Interval: f.interval,
		Line:     func(line string) { fmt.Fprintln(c.out, line) },
	})
	if err != nil {
		return err
	}
	if j.Status() == model.JobStatusFailed {
		return fmt.Errorf("%w: %s", errJobFailed, j.ID)
	}
	return nil
}

// parseParams turns key=value pairs into training overrides. Values that parse as
// JSON keep their type; anything else is taken as a string.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func loadParamsFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse params file %s: %w", path, err)
	}
	return out, nil
}

func newTrainCmd(c *cli) *cobra.Command {
	var (
		pairs []string
		file  string
		sf    submitFlags
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Start a fine-tuning run",
		Long: "Start a fine-tuning run. Parameters not given keep their defaults; " +
			"see `qloractl params` for the full list.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if file != "" {
				loaded, err := loadParamsFile(file)
				if err != nil {
					return err
				}
				params = loaded
			}
			overrides, err := parseParams(pairs)
			if err != nil {
				return err
			}
			for k, v := range overrides {
				params[k] = v
			}

			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			resp, err := cl.SubmitTrain(ctx, params)
			if err != nil {
				return err
			}
			return c.submitted(cmd, cl, resp, sf)
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "param", "p", nil, "parameter override as key=value (repeatable)")
	cmd.Flags().StringVar(&file, "params-file", "", "JSON object of parameter overrides; --param wins on conflict")
	sf.register(cmd)
	return cmd
}

func newParamsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List tunable training parameters and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			specs, err := cl.TrainParameters(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, specs)
			}
			return printParams(c.out, specs)
		},
	}
}

func optional(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func newEvaluateCmd(c *cli) *cobra.Command {
	var (
		req       model.EvaluateRequest
		output    string
		evalModel string
		apiKey    string
		sf        submitFlags
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a predictions file against references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.OutputFile = optional(cmd, "output-file", output)
			req.Model = optional(cmd, "model", evalModel)
			req.OpenAIAPIKey = optional(cmd, "openai-api-key", apiKey)

			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			resp, err := cl.SubmitEvaluate(ctx, req)
			if err != nil {
				return err
			}
			return c.submitted(cmd, cl, resp, sf)
		},
	}
	cmd.Flags().StringVar(&req.PredictionsFile, "predictions-file", "", "predictions JSON file (required)")
	cmd.Flags().StringVar(&req.ReferenceFile, "reference-file", "", "reference JSON file (required)")
	cmd.Flags().StringVar(&output, "output-file", "", "where to write the scored results")
	cmd.Flags().StringVar(&evalModel, "model", model.DefaultEvalModel, "judge model")
	cmd.Flags().StringVar(&apiKey, "openai-api-key", "", "API key for the judge model")
	sf.register(cmd)
	return cmd
}

func newMergeCmd(c *cli) *cobra.Command {
	var (
		req   model.MergeRequest
		trust bool
		sf    submitFlags
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold a trained adapter into its base model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("trust-remote-code") {
				req.TrustRemoteCode = &trust
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			resp, err := cl.SubmitMerge(ctx, req)
			if err != nil {
				return err
			}
			return c.submitted(cmd, cl, resp, sf)
		},
	}
	cmd.Flags().StringVar(&req.BaseModelName, "base-model", "", "base model identifier or path (required)")
	cmd.Flags().StringVar(&req.AdapterPath, "adapter-path", "", "trained adapter directory (required)")
	cmd.Flags().StringVar(&req.OutputDir, "output-dir", "", "where to write the merged model (required)")
	cmd.Flags().StringVar(&req.Device, "device", "", "device for the merge, e.g. cpu or cuda")
	cmd.Flags().BoolVar(&trust, "trust-remote-code", true, "allow custom model code from the hub")
	sf.register(cmd)
	return cmd
}

func newPublishCmd(c *cli) *cobra.Command {
	var (
		req           model.PublishRequest
		token, commit string
		sf            submitFlags
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a model directory to the hub or S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Token = optional(cmd, "token", token)
			req.CommitMessage = optional(cmd, "commit-message", commit)

			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			resp, err := cl.SubmitPublish(ctx, req)
			if err != nil {
				return err
			}
			return c.submitted(cmd, cl, resp, sf)
		},
	}
	cmd.Flags().StringVar(&req.SourceDir, "source-dir", "", "model directory to upload (required)")
	cmd.Flags().StringVar(&req.RepoID, "repo-id", "", "destination repository or S3 prefix")
	cmd.Flags().StringVar(&req.Target, "target", model.PublishTargetHub, "hub or s3")
	cmd.Flags().StringVar(&req.RepoType, "repo-type", "", "hub repository type")
	cmd.Flags().BoolVar(&req.Private, "private", false, "create the hub repository as private")
	cmd.Flags().StringVar(&token, "token", "", "hub token; defaults to the server's environment")
	cmd.Flags().StringVar(&commit, "commit-message", "", "hub commit message")
	sf.register(cmd)
	return cmd
}
