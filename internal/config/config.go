package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model. Paths are keyed by
// symbolic name so nothing outside this package hardcodes the archive layout.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Stance  StanceConfig  `yaml:"stance"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PathsConfig resolves symbolic path keys against the archive root.
type PathsConfig struct {
	// RepositoryPath is the root of the data archive.
	RepositoryPath string `yaml:"repositoryPath"`
	// Sources maps symbolic keys (posters_path, istandwithtruckers_file,
	// userid2usernames_map, prompt_folder, ...) to paths relative to the root.
	Sources map[string]string `yaml:"sources"`
}

type StanceConfig struct {
	Provider string `yaml:"provider"` // "openai" or "none"
	Model    string `yaml:"model"`
	// If empty, read from env OPENAI_API_KEY
	APIKey string `yaml:"apiKey"`
	Seed   int64  `yaml:"seed"`
	// BatchSize bounds how much work is lost if a run dies mid-flight.
	BatchSize  int `yaml:"batchSize"`
	SampleSize int `yaml:"sampleSize"`
	// MaxTweetsPerUser is the timeline sample submitted per user evaluation.
	MaxTweetsPerUser int `yaml:"maxTweetsPerUser"`
	// MinTweetsPerUser excludes authors with too thin a timeline.
	MinTweetsPerUser int    `yaml:"minTweetsPerUser"`
	TweetPromptName  string `yaml:"tweetPromptName"`
	UserPromptName   string `yaml:"userPromptName"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with the archive's standard layout.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			RepositoryPath: "./data",
			Sources: map[string]string{
				"mentioners_path":         "timelines/mentioners",
				"posters_path":            "timelines/posters",
				"retweeters_path":         "timelines/retweeters",
				"flutruxklan_path":        "hashtags/flutruxklan",
				"holdtheline_path":        "hashtags/holdtheline",
				"honkhonk_path":           "hashtags/honkhonk",
				"truckerconvoy2022_path":  "hashtags/truckerconvoy2022",
				"istandwithtruckers_file": "hashtags/istandwithtruckers.xlsx",
				"userid2usernames_map":    "derived/userid2usernames.json",
				"duplicate_users_csv":     "derived/duplicate_users.csv",
				"prompt_folder":           "prompts",
				"tweet_eval_output":       "derived/tweet_stance_results.json",
				"user_eval_output":        "derived/user_stance_results.json",
				"stats_table_csv":         "derived/statistics_table.csv",
				"hashtag_counts_csv":      "derived/hashtag_counts.csv",
				"vocab_file":              "derived/vocab.txt",
			},
		},
		Stance: StanceConfig{
			Provider:         "none",
			Model:            "gpt-4o-mini",
			Seed:             172027145,
			BatchSize:        30,
			SampleSize:       100,
			MaxTweetsPerUser: 20,
			MinTweetsPerUser: 5,
			TweetPromptName:  "tweet_stance",
			UserPromptName:   "user_stance",
		},
		Storage: StorageConfig{DBPath: "./convoyset.db"},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Stance.APIKey == "" && strings.EqualFold(c.Stance.Provider, "openai") {
		c.Stance.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Path resolves a symbolic key to an absolute path under the archive root.
func (p PathsConfig) Path(key string) (string, error) {
	if key == "repository_path" {
		return p.RepositoryPath, nil
	}
	rel, ok := p.Sources[key]
	if !ok {
		return "", fmt.Errorf("unknown path key %q", key)
	}
	return filepath.Join(p.RepositoryPath, rel), nil
}

// JSONFiles walks the folder behind key and returns every .json file in it,
// sorted for deterministic load order.
func (p PathsConfig) JSONFiles(key string) ([]string, error) {
	root, err := p.Path(key)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Prompt reads <prompt_folder>/<name>.txt.
func (c Config) Prompt(name string) (string, error) {
	folder, err := c.Paths.Path("prompt_folder")
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(folder, name+".txt"))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
