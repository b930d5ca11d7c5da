// Package round parses round command flags and runs one league round.
package round

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/governance"
	"github.com/openleague/courtside/internal/league/interpret"
	leagueround "github.com/openleague/courtside/internal/league/round"
	"github.com/openleague/courtside/internal/league/ruleset"
	"github.com/openleague/courtside/internal/league/sim"
	"github.com/openleague/courtside/internal/league/storage/archive"
	"github.com/openleague/courtside/internal/league/storage/sqlite"
	"github.com/openleague/courtside/internal/platform/config"
	"github.com/openleague/courtside/internal/platform/timeouts"
)

// Config holds round command configuration.
type Config struct {
	LeagueID    string `env:"COURTSIDE_LEAGUE_ID" envDefault:"default"`
	DBPath      string `env:"COURTSIDE_DB_PATH" envDefault:"data/courtside.db"`
	RulesetPath string `env:"COURTSIDE_RULESET_PATH"`
	RoundFile   string `env:"COURTSIDE_ROUND_FILE"`
	ArchiveDir  string `env:"COURTSIDE_ARCHIVE_DIR"`
	Concurrency int    `env:"COURTSIDE_SIM_CONCURRENCY" envDefault:"1"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.LeagueID, "league", cfg.LeagueID, "The league identifier")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The league SQLite database path")
	fs.StringVar(&cfg.RulesetPath, "ruleset", cfg.RulesetPath, "The ruleset YAML path (defaults apply when empty)")
	fs.StringVar(&cfg.RoundFile, "round-file", cfg.RoundFile, "The round input YAML path")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Directory for compressed journal exports (disabled when empty)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Parallel game simulations")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.RoundFile == "" {
		return Config{}, fmt.Errorf("round file is required")
	}
	return cfg, nil
}

// roundFile is the on-disk shape of one round's input.
type roundFile struct {
	Round          int            `yaml:"round"`
	EligibleVoters int            `yaml:"eligible_voters"`
	Schedule       []matchupFile  `yaml:"schedule"`
	Proposals      []proposalFile `yaml:"proposals"`
}

type matchupFile struct {
	Home teamFile `yaml:"home"`
	Away teamFile `yaml:"away"`
}

type teamFile struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

type proposalFile struct {
	ID string `yaml:"id"`
	// Text is sent to the interpretation service when SpecsJSON is empty.
	Text string `yaml:"text,omitempty"`
	// SpecsJSON carries pre-interpreted specifications, validated here
	// against the closed grammar before enactment.
	SpecsJSON string            `yaml:"specs_json,omitempty"`
	Votes     map[string]string `yaml:"votes"`
}

func loadRoundFile(path string) (leagueround.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return leagueround.Input{}, fmt.Errorf("read round file: %w", err)
	}
	var file roundFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return leagueround.Input{}, fmt.Errorf("parse round file: %w", err)
	}

	in := leagueround.Input{Round: file.Round}
	for _, m := range file.Schedule {
		in.Schedule = append(in.Schedule, leagueround.Matchup{
			Home: sim.Team{ID: m.Home.ID, Name: m.Home.Name, Owner: m.Home.Owner},
			Away: sim.Team{ID: m.Away.ID, Name: m.Away.Name, Owner: m.Away.Owner},
		})
	}
	for _, p := range file.Proposals {
		pending := leagueround.PendingProposal{
			ID:       p.ID,
			Text:     p.Text,
			Votes:    p.Votes,
			Eligible: file.EligibleVoters,
		}
		if p.SpecsJSON != "" {
			specs, err := interpret.ValidateSpecificationsJSON([]byte(p.SpecsJSON))
			if err != nil {
				return leagueround.Input{}, fmt.Errorf("proposal %s: %w", p.ID, err)
			}
			pending.Specs = specs
		}
		in.Proposals = append(in.Proposals, pending)
	}
	return in, nil
}

// Run executes one round against the configured league database.
func Run(ctx context.Context, cfg Config, interpreter interpret.Interpreter) error {
	in, err := loadRoundFile(cfg.RoundFile)
	if err != nil {
		return err
	}

	rules := ruleset.Default()
	if cfg.RulesetPath != "" {
		rules, err = ruleset.Load(cfg.RulesetPath)
		if err != nil {
			return fmt.Errorf("load ruleset: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	orch, err := leagueround.Load(ctx, cfg.LeagueID, store, store, rules)
	if err != nil {
		return err
	}
	orch.Interpreter = interpreter
	orch.Policy = governance.DefaultPolicy()
	orch.Concurrency = cfg.Concurrency

	ctx, cancel := context.WithTimeout(ctx, timeouts.Round)
	defer cancel()

	result, err := orch.RunRound(ctx, in)
	if err != nil {
		return fmt.Errorf("run round %d: %w", in.Round, err)
	}
	for _, line := range result.Report.Lines {
		log.Println(line)
	}
	if len(result.Expired) > 0 {
		log.Printf("expired effects: %v", result.Expired)
	}

	if cfg.ArchiveDir != "" {
		if err := exportArchive(ctx, cfg, store, in.Round); err != nil {
			return err
		}
	}
	return nil
}

// exportArchive writes the full lifecycle journal as a compressed JSONL
// snapshot alongside the round run.
func exportArchive(ctx context.Context, cfg Config, store *sqlite.Store, round int) error {
	types := append(event.EffectLifecycleTypes(), event.TypeProposalPassed, event.TypeParameterApplied)
	events, err := store.ListEventsByTypes(ctx, cfg.LeagueID, types)
	if err != nil {
		return fmt.Errorf("list journal for archive: %w", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	name := fmt.Sprintf("%s-round-%04d-%s.jsonl.zst", cfg.LeagueID, round, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(cfg.ArchiveDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if err := archive.ExportJournal(events, f); err != nil {
		return fmt.Errorf("export journal: %w", err)
	}
	log.Printf("journal archived to %s (%d events)", path, len(events))
	return nil
}
