package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"convoyset/internal/cmdlog"
	"convoyset/internal/config"
	"convoyset/internal/dataset"
	"convoyset/internal/identity"
	"convoyset/internal/metrics"
	"convoyset/internal/stance"
	"convoyset/internal/stats"
	"convoyset/internal/store/corpusdb"
	"convoyset/internal/theme"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "load":
		run("load", cmdLoad)
	case "identitymap":
		run("identitymap", cmdIdentityMap)
	case "stats":
		run("stats", cmdStats)
	case "hashtags":
		run("hashtags", cmdHashtags)
	case "vocab":
		run("vocab", cmdVocab)
	case "export":
		run("export", cmdExport)
	case "eval-tweets":
		run("eval-tweets", cmdEvalTweets)
	case "eval-users":
		run("eval-users", cmdEvalUsers)
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: convoyset <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init         Create a config file at ./convoyset.yaml")
	fmt.Println("  load         Load a partition and print entity counts")
	fmt.Println("  identitymap  Build the user id -> usernames map and duplicate report")
	fmt.Println("  stats        Write the per-partition statistics table")
	fmt.Println("  hashtags     Write per-day campaign hashtag counts")
	fmt.Println("  vocab        Extract the corpus vocabulary")
	fmt.Println("  export       Export the deduplicated corpus to SQLite")
	fmt.Println("  eval-tweets  Classify the political stance of sampled tweets")
	fmt.Println("  eval-users   Classify the political stance of sampled users")
}

func run(name string, f func() error) {
	if err := cmdlog.Run(name, f); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	metrics.StartServer(cfg.Metrics.Addr)
	return cfg, nil
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./convoyset.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdLoad() error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	partition := fs.String("partition", string(dataset.All), "dataset partition")
	dedup := fs.Bool("dedup", true, "remove duplicate entities")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.Partition(*partition), *dedup)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d users, %d tweets, %d places\n",
		*partition, len(corpus.Users), len(corpus.Tweets), len(corpus.Places))
	return nil
}

func cmdIdentityMap() error {
	fs := flag.NewFlagSet("identitymap", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	m, err := buildIdentityMap(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("identity map: %d users\n", len(m))
	return nil
}

// buildIdentityMap builds the map from the full user universe (every JSON
// crawl, timelines and hashtag campaigns alike). Contested usernames are
// always reported to the CSV, and any conflict aborts before the map is
// persisted: downstream the file is the authoritative identity source.
func buildIdentityMap(cfg config.Config) (identity.Map, error) {
	users, err := dataset.New(cfg.Paths).Users(dataset.All)
	if err != nil {
		return nil, err
	}
	m := identity.Build(users)
	conflicts := m.DuplicateUsernames()
	csvPath, err := cfg.Paths.Path("duplicate_users_csv")
	if err != nil {
		return nil, err
	}
	if err := writeConflicts(csvPath, conflicts); err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &identity.ConflictError{Conflicts: conflicts}
	}
	mapPath, err := cfg.Paths.Path("userid2usernames_map")
	if err != nil {
		return nil, err
	}
	if err := identity.Save(mapPath, m); err != nil {
		return nil, err
	}
	return m, nil
}

func writeConflicts(path string, conflicts []identity.Conflict) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	records := [][]string{{"username", "user_ids"}}
	for _, c := range conflicts {
		records = append(records, []string{c.Username, strings.Join(c.IDs, ";")})
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func cmdStats() error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	ds := dataset.New(cfg.Paths)
	partitions := []dataset.Partition{
		dataset.Posters, dataset.Mentioners, dataset.Retweeters, dataset.AllTimelines,
		dataset.FluTruxKlan, dataset.HoldTheLine, dataset.HonkHonk, dataset.TruckerConvoy2022,
		dataset.IStandWithTruckers, dataset.AllHashtags, dataset.All,
	}
	rows := make([]stats.PartitionRow, 0, len(partitions))
	for _, p := range partitions {
		corpus, err := ds.Get(p, false)
		if err != nil {
			return err
		}
		if len(corpus.Tweets) == 0 {
			continue
		}
		row, err := stats.ComputeRow(string(p), corpus.Tweets)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	out, err := cfg.Paths.Path("stats_table_csv")
	if err != nil {
		return err
	}
	if err := stats.WriteTable(out, rows); err != nil {
		return err
	}
	fmt.Println("Statistics table written to:", out)
	return nil
}

func cmdHashtags() error {
	fs := flag.NewFlagSet("hashtags", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	start := fs.String("start", "2022-01-01", "first day (inclusive)")
	end := fs.String("end", "2022-03-31", "last day (inclusive)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	from, err := parseDay(*start)
	if err != nil {
		return err
	}
	to, err := parseDay(*end)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.All, true)
	if err != nil {
		return err
	}
	buckets := stats.DailyHashtagCounts(corpus.Tweets, from, to)
	campaigns := []string{"flutruxklan", "truckerconvoy2022", "holdtheline", "honkhonk", "istandwithtruckers"}
	out, err := cfg.Paths.Path("hashtag_counts_csv")
	if err != nil {
		return err
	}
	if err := stats.WriteHashtagCounts(out, buckets, campaigns); err != nil {
		return err
	}
	fmt.Println("Hashtag counts written to:", out)
	return nil
}

func cmdVocab() error {
	fs := flag.NewFlagSet("vocab", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	minCount := fs.Int("min-count", 10, "drop tokens occurring this many times or fewer")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.All, true)
	if err != nil {
		return err
	}
	words := stats.Vocabulary(corpus.Tweets, *minCount)
	out, err := cfg.Paths.Path("vocab_file")
	if err != nil {
		return err
	}
	if err := stats.WriteVocabulary(out, words); err != nil {
		return err
	}
	fmt.Printf("Vocabulary written to %s (%d tokens)\n", out, len(words))
	return nil
}

func cmdExport() error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	partition := fs.String("partition", string(dataset.All), "dataset partition")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.Partition(*partition), true)
	if err != nil {
		return err
	}
	db, err := corpusdb.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.SaveCorpus(ctx, corpus); err != nil {
		return err
	}
	users, tweets, places, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s now holds %d users, %d tweets, %d places\n", cfg.Storage.DBPath, users, tweets, places)
	return nil
}

func newDetector(cfg config.Config) (stance.Detector, error) {
	if !strings.EqualFold(cfg.Stance.Provider, "openai") {
		return nil, fmt.Errorf("stance provider %q cannot classify; set stance.provider to openai", cfg.Stance.Provider)
	}
	tweetPrompt, err := cfg.Prompt(cfg.Stance.TweetPromptName)
	if err != nil {
		return nil, err
	}
	userPrompt, err := cfg.Prompt(cfg.Stance.UserPromptName)
	if err != nil {
		return nil, err
	}
	return stance.NewOpenAIDetector(cfg.Stance, tweetPrompt, userPrompt)
}

func evalOptions(cfg config.Config, outputKey, start, end string) (stance.Options, error) {
	out, err := cfg.Paths.Path(outputKey)
	if err != nil {
		return stance.Options{}, err
	}
	from, err := parseDay(start)
	if err != nil {
		return stance.Options{}, err
	}
	to, err := parseDay(end)
	if err != nil {
		return stance.Options{}, err
	}
	return stance.Options{
		OutputPath: out,
		Seed:       cfg.Stance.Seed,
		BatchSize:  cfg.Stance.BatchSize,
		SampleSize: cfg.Stance.SampleSize,
		Start:      from,
		End:        to,
	}, nil
}

func cmdEvalTweets() error {
	fs := flag.NewFlagSet("eval-tweets", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	partition := fs.String("partition", string(dataset.All), "dataset partition")
	start := fs.String("start", "2022-01-01", "first day (inclusive)")
	end := fs.String("end", "2022-03-31", "last day (inclusive)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	det, err := newDetector(cfg)
	if err != nil {
		return err
	}
	opts, err := evalOptions(cfg, "tweet_eval_output", *start, *end)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.Partition(*partition), true)
	if err != nil {
		return err
	}
	results, err := stance.EvaluateTweets(context.Background(), det, corpus.Tweets, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%d tweet classifications in %s\n", len(results), opts.OutputPath)
	return nil
}

func cmdEvalUsers() error {
	fs := flag.NewFlagSet("eval-users", flag.ExitOnError)
	cfgPath := fs.String("config", "./convoyset.yaml", "config path")
	partition := fs.String("partition", string(dataset.All), "dataset partition")
	start := fs.String("start", "2022-01-01", "first day (inclusive)")
	end := fs.String("end", "2022-03-31", "last day (inclusive)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	det, err := newDetector(cfg)
	if err != nil {
		return err
	}
	opts, err := evalOptions(cfg, "user_eval_output", *start, *end)
	if err != nil {
		return err
	}
	corpus, err := dataset.New(cfg.Paths).Get(dataset.Partition(*partition), true)
	if err != nil {
		return err
	}
	results, err := stance.EvaluateUsers(context.Background(), det, corpus.Tweets, opts,
		cfg.Stance.MinTweetsPerUser, cfg.Stance.MaxTweetsPerUser)
	if err != nil {
		return err
	}
	fmt.Printf("%d user classifications in %s\n", len(results), opts.OutputPath)
	return nil
}
