package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/coverwatch/internal/cobertura"
	"github.com/everstacklabs/coverwatch/internal/config"
	"github.com/everstacklabs/coverwatch/internal/pipeline"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "coverwatch",
		Short: "Coverage diff bot for pull requests",
		Long:  "Fetches the latest coverage reports for the base and head branches of a PR, diffs them, and keeps a single coverage comment up to date.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		commentCmd(),
		diffCmd(),
		checkCmd(),
		parseCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commentCmd() *cobra.Command {
	var prNumber int

	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Full pipeline: fetch → diff → render → create/update PR comment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p := pipeline.New(cfg)
			res, err := p.Comment(cmd.Context(), prNumber)
			if err != nil {
				return err
			}

			if res.Unavailable {
				slog.Warn("posted coverage-unavailable notice", "missing", res.Missing)
			}
			if code := res.ExitCode(); code != pipeline.ExitSuccess {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&prNumber, "pr", 0, "Pull request number")
	_ = cmd.MarkFlagRequired("pr")

	return cmd
}

func diffCmd() *cobra.Command {
	var baseBranch, headBranch string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the rendered coverage diff (no GitHub access)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if baseBranch != "" {
				cfg.BaseBranch = baseBranch
			}
			if headBranch != "" {
				cfg.HeadBranch = headBranch
			}

			p := pipeline.New(cfg)
			res, err := p.Diff(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(res.Report)
			if code := res.ExitCode(); code != pipeline.ExitSuccess {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseBranch, "base", "", "Base branch (default: from config)")
	cmd.Flags().StringVar(&headBranch, "head", "", "Head branch (default: current branch)")

	return cmd
}

func checkCmd() *cobra.Command {
	var output string
	var baseBranch, headBranch string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Gate CI on head coverage (exit 2 when below the minimum)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if baseBranch != "" {
				cfg.BaseBranch = baseBranch
			}
			if headBranch != "" {
				cfg.HeadBranch = headBranch
			}

			p := pipeline.New(cfg)
			res, err := p.Diff(cmd.Context())
			if err != nil {
				return err
			}

			if output == "yaml" && res.Diff != nil {
				data, err := yaml.Marshal(res.Diff)
				if err != nil {
					return fmt.Errorf("marshaling diff result: %w", err)
				}
				fmt.Print(string(data))
			} else if res.Diff != nil {
				fmt.Printf("head coverage: %.2f%% (minimum %.2f%%)\n",
					res.Diff.Overall.Head.Percent, cfg.MinCoverage)
			}

			if code := res.ExitCode(); code != pipeline.ExitSuccess {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "text", "Output format: text or yaml")
	cmd.Flags().StringVar(&baseBranch, "base", "", "Base branch (default: from config)")
	cmd.Flags().StringVar(&headBranch, "head", "", "Head branch (default: current branch)")

	return cmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <coverage.xml>",
		Short: "Parse a local coverage report and print its per-file summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := cobertura.Parse(data)
			if err != nil {
				return err
			}

			for i := range doc.Files {
				st := doc.Files[i].Stats()
				fmt.Printf("%-50s %6.2f%%  (%d/%d lines)\n",
					st.Path, st.Percent, st.CoveredLines, st.TotalLines)
			}

			overall := doc.Stats()
			fmt.Printf("\n%s dialect, %d files, %.2f%% covered\n",
				doc.Dialect, overall.TotalFiles, overall.Percent)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
