package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"threatlens/internal/adapters/memory"
	"threatlens/internal/bootstrap"
	"threatlens/internal/config"
	"threatlens/internal/domain"
	scansvc "threatlens/internal/services/scanner"
	scanworker "threatlens/internal/workers/scanrunner"
)

type options struct {
	seed   int64
	rules  string
	output string
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:          "scanctl",
		Short:        "Scan a URL or file once and print the result",
		SilenceUsage: true,
	}
	root.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "seed for the simulated producers (0 = from config or clock)")
	root.PersistentFlags().StringVar(&opts.rules, "rules", "", "YAML rule file overriding the built-in rules")
	root.PersistentFlags().StringVarP(&opts.output, "out", "o", "", "write the JSON result to this file instead of stdout")

	root.AddCommand(newURLCmd(opts), newFileCmd(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newURLCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>",
		Short: "Scan a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, func(ctx context.Context, svc *scansvc.Service) (string, error) {
				return svc.SubmitURL(ctx, args[0])
			})
		},
	}
}

func newFileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Scan a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			return run(opts, func(ctx context.Context, svc *scansvc.Service) (string, error) {
				return svc.SubmitFile(ctx, args[0], content)
			})
		},
	}
}

// run submits through the same service and processor the server uses, backed
// by the in-memory store.
func run(opts *options, submit func(context.Context, *scansvc.Service) (string, error)) error {
	cfg, err := config.Load()
	if err != nil && !errors.Is(err, config.ErrNoDatabase) {
		return err
	}
	if opts.seed != 0 {
		cfg.SimSeed = opts.seed
	}
	if opts.rules != "" {
		cfg.RulesFile = opts.rules
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pipeline, err := bootstrap.Pipeline(cfg)
	if err != nil {
		return err
	}
	store := memory.NewStore()
	svc := scansvc.New(store, store, cfg.AllowedTypes, cfg.MaxFileBytes)
	processor := scanworker.PipelineProcessor{
		Scans:    store,
		Results:  store,
		Repo:     store,
		Pipeline: pipeline,
		Subject:  scansvc.SubjectFor,
	}

	id, err := submit(ctx, svc)
	if err != nil {
		return err
	}
	if err := scanworker.ProcessInline(ctx, store, processor, id); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	req, err := svc.Status(ctx, id)
	if err != nil {
		return err
	}
	if req.ResultID == nil {
		return fmt.Errorf("scan %s finished without a result", id)
	}
	res, err := svc.Result(ctx, *req.ResultID)
	if err != nil {
		return err
	}
	return write(opts.output, res)
}

func write(path string, res domain.ScanResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s (score %d) written to %s\n", res.Target, res.Verdict, res.RiskScore, path)
	return nil
}
