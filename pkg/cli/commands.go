package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/computerscienceiscool/rgrun/pkg/app"
)

// requestFlags are the per-invocation options shared by search and find.
type requestFlags struct {
	cwd          string
	gitRoot      bool
	globs        []string
	excludeGlobs []string
	types        []string
	typesNot     []string
	ignoreCase   bool
	maxDepth     int
	sort         string
	sortr        string
	async        bool
	record       bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.cwd, "cwd", ".", "Directory to run rg in")
	flags.BoolVar(&f.gitRoot, "git-root", false, "Run from the root of the git repository containing --cwd")
	flags.StringSliceVarP(&f.globs, "glob", "g", nil, "Include files matching glob (repeatable)")
	flags.StringSliceVar(&f.excludeGlobs, "exclude-glob", nil, "Exclude files matching glob (repeatable)")
	flags.StringSliceVarP(&f.types, "type", "t", nil, "Only search files of this type (repeatable)")
	flags.StringSliceVarP(&f.typesNot, "type-not", "T", nil, "Skip files of this type (repeatable)")
	flags.BoolVarP(&f.ignoreCase, "ignore-case", "i", false, "Case insensitive search")
	flags.IntVar(&f.maxDepth, "max-depth", 0, "Descend at most this many directories (0 = unlimited)")
	flags.StringVar(&f.sort, "sort", "", "Sort ascending by none, path, modified, accessed or created")
	flags.StringVar(&f.sortr, "sortr", "", "Sort descending by none, path, modified, accessed or created")
	flags.BoolVar(&f.async, "async", false, "Consume results through the streaming API")
	flags.BoolVar(&f.record, "record", false, "Record this invocation in the history database")
}

func (f *requestFlags) request(targets []string) (app.Request, error) {
	if f.sort != "" && f.sortr != "" {
		return app.Request{}, fmt.Errorf("--sort and --sortr are mutually exclusive")
	}
	req := app.Request{
		Targets:      targets,
		Dir:          f.cwd,
		GitRoot:      f.gitRoot,
		IncludeGlobs: f.globs,
		ExcludeGlobs: f.excludeGlobs,
		Types:        f.types,
		TypesNot:     f.typesNot,
		IgnoreCase:   f.ignoreCase,
		MaxDepth:     f.maxDepth,
		Sort:         f.sort,
		Async:        f.async,
		Record:       f.record,
	}
	if f.sortr != "" {
		req.Sort = f.sortr
		req.SortReverse = true
	}
	return req, nil
}

func newSearchCmd() *cobra.Command {
	var (
		common       requestFlags
		patterns     []string
		before       int
		after        int
		contextLines int
		maxCount     int
		fixedStrings bool
		stats        bool
	)

	cmd := &cobra.Command{
		Use:   "search [flags] PATTERN [PATH...]",
		Short: "Search for a pattern and print matches grouped by file",
		Example: `  rgrun search -i todo src
  rgrun search -e foo -e bar --format json
  rgrun search --git-root -C 2 'func main'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(patterns) == 0 {
				if len(args) == 0 {
					return fmt.Errorf("a pattern is required")
				}
				patterns, args = args[:1], args[1:]
			}

			req, err := common.request(args)
			if err != nil {
				return err
			}
			req.Patterns = patterns
			req.Before, req.After = contextLines, contextLines
			if cmd.Flags().Changed("before-context") {
				req.Before = before
			}
			if cmd.Flags().Changed("after-context") {
				req.After = after
			}
			req.MaxCount = maxCount
			req.FixedStrings = fixedStrings
			req.Stats = stats

			a, err := bootstrapApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if found == 0 {
				return errNoResults
			}
			return nil
		},
	}

	common.register(cmd)
	flags := cmd.Flags()
	flags.StringArrayVarP(&patterns, "regexp", "e", nil, "Pattern to search for (repeatable); all arguments become paths")
	flags.IntVarP(&before, "before-context", "B", 0, "Show NUM lines before each match")
	flags.IntVarP(&after, "after-context", "A", 0, "Show NUM lines after each match")
	flags.IntVarP(&contextLines, "context", "C", 0, "Show NUM lines before and after each match")
	flags.IntVarP(&maxCount, "max-count", "m", 0, "Report at most NUM matching lines per file")
	flags.BoolVarP(&fixedStrings, "fixed-strings", "F", false, "Treat patterns as literals")
	flags.BoolVar(&stats, "stats", false, "Print the run summary")
	return cmd
}

func newFindCmd() *cobra.Command {
	var common requestFlags

	cmd := &cobra.Command{
		Use:   "find [flags] [PATH...]",
		Short: "List the files rg would search",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := common.request(args)
			if err != nil {
				return err
			}

			a, err := bootstrapApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.Find(cmd.Context(), req)
			if err != nil {
				return err
			}
			if found == 0 {
				return errNoResults
			}
			return nil
		},
	}
	common.register(cmd)
	return cmd
}

func newDoctorCmd() *cobra.Command {
	var opts app.DoctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the engine version, run a self test and probe optional services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Doctor(cmd.Context(), opts)
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.PullImage, "pull", false, "Pull the sandbox image if it is missing")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		files bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded invocations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.History(limit, files)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of invocations to show (default history.limit)")
	cmd.Flags().BoolVar(&files, "files", false, "List per-file match counts")
	return cmd
}
