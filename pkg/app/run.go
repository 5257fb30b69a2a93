package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/history"
	"github.com/computerscienceiscool/rgrun/pkg/output"
	"github.com/computerscienceiscool/rgrun/pkg/ripgrep"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// builder is the option surface shared by ripgrep.Search and ripgrep.Find.
type builder[T any] interface {
	CaseSensitive(sensitive bool) T
	Sort(key ripgrep.SortKey, ascending bool) T
	MaxDepth(depth int) T
	IncludeGlobs(globs []string) T
	ExcludeGlobs(globs []string) T
	IncludeTypes(names []string) T
	ExcludeTypes(names []string) T
	AddDirectories(dirs []string) T
	SetWorkingDirectory(dir string) T
	SetExecutable(path string) T
	SetNoMatchExitCode(code int) T
	SetTimeout(d time.Duration) T
	SetSource(src ripgrep.LineSource) T
}

func configure[T builder[T]](b T, cfg *config.Config, inv *invocation, req Request) error {
	b.SetExecutable(inv.executable).
		SetWorkingDirectory(inv.dir).
		SetNoMatchExitCode(cfg.Engine.NoMatchExitCode).
		SetTimeout(cfg.Engine.Timeout).
		SetSource(inv.source)

	if cfg.Search.SafeDefaults {
		b.MaxDepth(cfg.Search.MaxDepth)
	}
	if req.MaxDepth > 0 {
		b.MaxDepth(req.MaxDepth)
	}
	b.CaseSensitive(!req.IgnoreCase)

	b.IncludeGlobs(req.IncludeGlobs).
		ExcludeGlobs(cfg.Search.ExcludeGlobs).
		ExcludeGlobs(req.ExcludeGlobs).
		IncludeTypes(req.Types).
		ExcludeTypes(req.TypesNot)
	if cfg.Search.DefaultExcludes {
		// Explicitly requested types win over the presets.
		var excluded []string
		for _, name := range ripgrep.DefaultExcludedTypes() {
			if !slices.Contains(req.Types, name) {
				excluded = append(excluded, name)
			}
		}
		b.ExcludeTypes(excluded)
	}

	if req.Sort != "" {
		if !slices.Contains(config.SortKeys, req.Sort) {
			return fmt.Errorf("invalid sort key %q (want one of %v)", req.Sort, config.SortKeys)
		}
		b.Sort(ripgrep.SortKey(req.Sort), !req.SortReverse)
	}

	b.AddDirectories(inv.targets)
	return nil
}

// Search runs the patterns of req and prints every file with matches. It
// returns the number of files printed.
func (a *App) Search(ctx context.Context, req Request) (int, error) {
	if len(req.Patterns) == 0 {
		return 0, fmt.Errorf("at least one pattern is required")
	}
	inv, err := a.resolve(req)
	if err != nil {
		return 0, err
	}

	s := ripgrep.NewSearch().AddPatterns(req.Patterns)
	if err := configure(s, a.config, inv, req); err != nil {
		return 0, err
	}
	if a.config.Search.SafeDefaults {
		s.MaxFileSize(a.config.Search.MaxFileSize).MaxCount(a.config.Search.MaxCount)
	}
	if req.MaxCount > 0 {
		s.MaxCount(req.MaxCount)
	}
	if req.FixedStrings {
		s.FixedStrings()
	}
	if req.Before > 0 {
		s.BeforeContext(req.Before)
	}
	if req.After > 0 {
		s.AfterContext(req.After)
	}

	argv, err := s.Compile()
	if err != nil {
		return 0, err
	}
	log.Debug().Strs("args", argv).Str("dir", inv.dir).Bool("async", req.Async).Msg("running search")

	printer, err := output.New(a.config.Output.Format, a.stdout, output.Options{
		Color:         a.config.Output.Color,
		MaxColumns:    a.config.Output.MaxColumns,
		BeforeContext: req.Before,
		AfterContext:  req.After,
	})
	if err != nil {
		return 0, err
	}

	started := time.Now()
	agg := search.NewAggregator()
	var stats []history.FileStat
	handle := func(res *search.SearchResult) error {
		stats = append(stats, fileStat(res))
		return printer.PrintResult(res)
	}

	if req.Async {
		err = consumeStream(ctx, s, agg, handle)
	} else {
		err = consumeSeq(ctx, s, agg, handle)
	}
	if err == nil && (req.Stats || a.config.Output.Format == "json") {
		err = printer.PrintSummary(agg.Summary(), len(stats))
	}
	if closeErr := printer.Close(); err == nil {
		err = closeErr
	}

	var matches uint64
	for _, st := range stats {
		matches += st.Matches
	}
	a.record(req, &history.Invocation{
		StartedAt: started,
		Command:   "search",
		Args:      argv,
		Dir:       inv.dir,
		Duration:  time.Since(started),
		Files:     len(stats),
		Matches:   matches,
		Stats:     stats,
	}, err)

	return len(stats), err
}

func consumeSeq(ctx context.Context, s *ripgrep.Search, agg *search.Aggregator, handle func(*search.SearchResult) error) error {
	for res, err := range s.RunWith(ctx, agg) {
		if err != nil {
			return err
		}
		if err := handle(res); err != nil {
			return err
		}
	}
	return nil
}

func consumeStream(ctx context.Context, s *ripgrep.Search, agg *search.Aggregator, handle func(*search.SearchResult) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := s.StreamWith(ctx, agg)
	if err != nil {
		return err
	}
	for msg := range results {
		if msg.Err != nil {
			return msg.Err
		}
		if err := handle(msg.Result); err != nil {
			return err
		}
	}
	// A cancelled stream ends without an error element.
	return ctx.Err()
}

// Find lists the files rg would search and returns how many were printed.
func (a *App) Find(ctx context.Context, req Request) (int, error) {
	inv, err := a.resolve(req)
	if err != nil {
		return 0, err
	}

	f := ripgrep.NewFind()
	if err := configure(f, a.config, inv, req); err != nil {
		return 0, err
	}
	argv, err := f.Compile()
	if err != nil {
		return 0, err
	}
	log.Debug().Strs("args", argv).Str("dir", inv.dir).Bool("async", req.Async).Msg("running find")

	printer, err := output.New(a.config.Output.Format, a.stdout, output.Options{Color: a.config.Output.Color})
	if err != nil {
		return 0, err
	}

	started := time.Now()
	var found int
	if req.Async {
		err = a.findStream(ctx, f, printer, &found)
	} else {
		for path, runErr := range f.Run(ctx) {
			if runErr != nil {
				err = runErr
				break
			}
			if err = printer.PrintPath(path); err != nil {
				break
			}
			found++
		}
	}
	if closeErr := printer.Close(); err == nil {
		err = closeErr
	}

	a.record(req, &history.Invocation{
		StartedAt: started,
		Command:   "find",
		Args:      append(argv, "--files"),
		Dir:       inv.dir,
		Duration:  time.Since(started),
		Files:     found,
	}, err)

	return found, err
}

func (a *App) findStream(ctx context.Context, f *ripgrep.Find, printer output.Printer, found *int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, err := f.Stream(ctx)
	if err != nil {
		return err
	}
	for l := range lines {
		if l.Err != nil {
			return l.Err
		}
		if err := printer.PrintPath(l.Text); err != nil {
			return err
		}
		*found++
	}
	return ctx.Err()
}

func fileStat(res *search.SearchResult) history.FileStat {
	st := history.FileStat{Path: res.Path}
	if res.End != nil {
		st.Matches = res.End.Stats.Matches
		st.MatchedLines = res.End.Stats.MatchedLines
		st.BytesSearched = res.End.Stats.BytesSearched
	}
	return st
}

// record stores inv when history is enabled. Failures are only logged.
func (a *App) record(req Request, inv *history.Invocation, runErr error) {
	if !req.Record && !a.config.History.Enabled {
		return
	}
	switch {
	case runErr != nil:
		inv.Status = history.StatusError
		inv.ErrorMsg = runErr.Error()
	case inv.Files == 0:
		inv.Status = history.StatusNoResults
	default:
		inv.Status = history.StatusOK
	}

	store, err := a.historyStore()
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable")
		return
	}
	id, err := store.Record(inv)
	if err != nil {
		log.Warn().Err(err).Msg("failed to record invocation")
		return
	}
	log.Debug().Int64("id", id).Str("status", inv.Status).Msg("recorded invocation")
}
