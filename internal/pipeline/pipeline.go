package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/coverwatch/internal/cache"
	"github.com/everstacklabs/coverwatch/internal/cobertura"
	"github.com/everstacklabs/coverwatch/internal/config"
	"github.com/everstacklabs/coverwatch/internal/diff"
	"github.com/everstacklabs/coverwatch/internal/httpclient"
	"github.com/everstacklabs/coverwatch/internal/omit"
	"github.com/everstacklabs/coverwatch/internal/pathnorm"
	"github.com/everstacklabs/coverwatch/internal/report"
	"github.com/everstacklabs/coverwatch/internal/storage"
)

// Exit codes for the CLI.
const (
	ExitSuccess        = 0
	ExitBelowThreshold = 2 // head coverage under the configured minimum
	ExitUnavailable    = 3 // one or both coverage documents missing
)

// Pipeline orchestrates fetch → parse → diff → render → publish.
type Pipeline struct {
	cfg   *config.Config
	store *storage.Client
}

// New wires up the storage client from configuration.
func New(cfg *config.Config) *Pipeline {
	var opts []httpclient.Option
	opts = append(opts, httpclient.WithRateLimit(10))

	if cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	} else {
		ttl, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			ttl = time.Hour
		}
		if fc, err := cache.New(cfg.CacheDir, ttl); err != nil {
			slog.Warn("failed to create cache, continuing without", "error", err)
		} else {
			opts = append(opts, httpclient.WithCache(fc))
		}
	}

	client := httpclient.New(opts...)
	return &Pipeline{
		cfg:   cfg,
		store: storage.New(client, cfg.Storage.Endpoint, cfg.Storage.Bucket),
	}
}

// RunResult is the outcome of one pipeline invocation.
type RunResult struct {
	Diff        *diff.Result
	Report      string
	Unavailable bool
	Missing     []string // branches with no coverage report
	CommentID   int64
	BaseBranch  string
	HeadBranch  string
}

// ExitCode maps the result onto the CLI exit codes.
func (r *RunResult) ExitCode() int {
	switch {
	case r.Unavailable:
		return ExitUnavailable
	case r.Diff != nil && r.Diff.BelowMinimum:
		return ExitBelowThreshold
	default:
		return ExitSuccess
	}
}

// Comment runs the full pipeline for a pull request and creates or updates
// the coverage comment on it.
func (p *Pipeline) Comment(ctx context.Context, prNumber int) (*RunResult, error) {
	if p.cfg.GitHub.Token == "" {
		return nil, fmt.Errorf("a GitHub token is required to comment on pull requests")
	}

	gh := newGitHubClient(ctx, p.cfg.GitHub.Token)
	owner, repo, err := p.ownerRepo()
	if err != nil {
		return nil, err
	}

	baseBranch, headBranch, err := prBranches(ctx, gh, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("resolving PR branches: %w", err)
	}

	changed, err := changedFiles(ctx, gh, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("listing PR files: %w", err)
	}

	result, err := p.diff(ctx, baseBranch, headBranch, changed)
	if err != nil {
		return nil, err
	}

	id, updated, err := publishComment(ctx, gh, owner, repo, prNumber, result.Report)
	if err != nil {
		return nil, fmt.Errorf("publishing comment: %w", err)
	}
	result.CommentID = id
	slog.Info("comment published",
		"pr", prNumber,
		"comment_id", id,
		"updated", updated)

	return result, nil
}

// Diff runs fetch → parse → diff → render without touching GitHub. Branch
// names and the (empty) changed-file list come from configuration, so the
// uncovered-files section is only produced in PR mode.
func (p *Pipeline) Diff(ctx context.Context) (*RunResult, error) {
	headBranch := p.cfg.HeadBranch
	if headBranch == "" {
		branch, err := CurrentBranch(".")
		if err != nil {
			return nil, fmt.Errorf("head branch not configured and not detectable: %w", err)
		}
		headBranch = branch
	}
	return p.diff(ctx, p.cfg.BaseBranch, headBranch, nil)
}

func (p *Pipeline) diff(ctx context.Context, baseBranch, headBranch string, changed []diff.ChangedFile) (*RunResult, error) {
	res := &RunResult{BaseBranch: baseBranch, HeadBranch: headBranch}

	var baseDoc, headDoc *cobertura.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseDoc, err = p.fetchDocument(gctx, baseBranch)
		return err
	})
	g.Go(func() error {
		var err error
		headDoc, err = p.fetchDocument(gctx, headBranch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if baseDoc == nil {
		res.Missing = append(res.Missing, baseBranch)
	}
	if headDoc == nil {
		res.Missing = append(res.Missing, headBranch)
	}
	if len(res.Missing) > 0 {
		res.Unavailable = true
		res.Report = report.RenderUnavailable(baseBranch, headBranch, res.Missing)
		slog.Warn("coverage unavailable, skipping diff", "missing", res.Missing)
		return res, nil
	}

	normalizePaths(baseDoc)
	normalizePaths(headDoc)

	omitCfg, err := omit.Load(p.cfg.CoverageRC)
	if err != nil {
		slog.Warn("ignoring unusable coveragerc", "path", p.cfg.CoverageRC, "error", err)
		omitCfg = &omit.Config{}
	}

	res.Diff = diff.Compute(baseDoc, headDoc, changed, diff.Options{
		MinCoverage: p.cfg.MinCoverage,
		Omit:        omitCfg,
	})
	res.Report = report.Render(res.Diff, baseBranch, headBranch, report.Options{
		MinCoverage: p.cfg.MinCoverage,
		ShowMissing: p.cfg.ShowMissing,
	})

	slog.Info("diff computed",
		"base", baseBranch,
		"head", headBranch,
		"impacted_files", len(res.Diff.Files),
		"coverage_delta", fmt.Sprintf("%+.2f", res.Diff.Overall.Coverage))

	return res, nil
}

// fetchDocument downloads and parses the latest report for a branch. A
// missing report returns (nil, nil); an unrecognized dialect degrades to an
// empty document; malformed XML is fatal.
func (p *Pipeline) fetchDocument(ctx context.Context, branch string) (*cobertura.Document, error) {
	data, err := p.store.LatestReport(ctx, p.cfg.Repository, branch)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching coverage for %s: %w", branch, err)
	}

	doc, err := cobertura.Parse(data)
	if errors.Is(err, cobertura.ErrUnknownDialect) {
		slog.Warn("coverage document matches no known dialect, treating as empty", "branch", branch)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing coverage for %s: %w", branch, err)
	}

	slog.Debug("coverage document parsed",
		"branch", branch,
		"dialect", doc.Dialect.String(),
		"files", len(doc.Files))
	return doc, nil
}

func normalizePaths(doc *cobertura.Document) {
	for i := range doc.Files {
		doc.Files[i].Path = pathnorm.Normalize(doc.Files[i].Path)
	}
}

// ownerRepo resolves the GitHub owner/repo pair from config, falling back
// to the origin remote of the working directory.
func (p *Pipeline) ownerRepo() (string, string, error) {
	if p.cfg.GitHub.Owner != "" && p.cfg.GitHub.Repo != "" {
		return p.cfg.GitHub.Owner, p.cfg.GitHub.Repo, nil
	}
	owner, repo, err := DetectRepo(".")
	if err != nil {
		return "", "", fmt.Errorf("github owner/repo not configured and not detectable: %w", err)
	}
	return owner, repo, nil
}
