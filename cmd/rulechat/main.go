package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rulechat/internal/config"
	"rulechat/internal/database"
	"rulechat/internal/ingest"
	"rulechat/internal/llm"
	"rulechat/internal/respond"
	"rulechat/internal/scorer"
	"rulechat/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rulechat",
	Short:   "Tabletop rulebook query service",
	Long:    "Rulechat ingests Markdown rulebooks and answers rules questions with cited, structured responses.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(queryCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rulechat", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/rulechat/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the AI provider and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Games:")
		fmt.Printf("  Total: %d\n", stats.TotalGames)
		for _, complexity := range []string{"easy", "medium", "hard"} {
			if n := stats.GamesByComplexity[complexity]; n > 0 {
				fmt.Printf("  %s: %d\n", strings.ToUpper(complexity[:1])+complexity[1:], n)
			}
		}
		fmt.Println("\nRules:")
		fmt.Printf("  Total: %d\n", stats.TotalRules)
		fmt.Printf("  Average per game: %.1f\n", stats.AverageRulesPerGame)
		fmt.Println("\nUploads:")
		fmt.Printf("  Pending: %d\n", stats.PendingUploads)
		fmt.Printf("\nAI provider: %s\n", cfg.AI.Provider)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider, embedder, usage := buildAI()
		responder := respond.New(provider, cfg.AI.Timeout(), cfg.AI.MaxTokens)
		ingestor := ingest.New(db, buildParser(), embedder)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, responder, ingestor, usage, cfg.Server.AdminToken, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- upload command ---

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Ingest Markdown rulebooks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		_, embedder, _ := buildAI()
		ingestor := ingest.New(db, buildParser(), embedder)
		ctx := context.Background()

		failed := 0
		for _, path := range args {
			content, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("  %s: %v\n", path, err)
				failed++
				continue
			}

			gameID, rules, err := ingestor.IngestFile(ctx, ingest.File{
				Name:    filepath.Base(path),
				Content: string(content),
			})
			if err != nil {
				fmt.Printf("  %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("  %s: %d rules added to %s\n", path, rules, gameID)
		}

		fmt.Printf("\nUploaded %d of %d file(s).\n", len(args)-failed, len(args))
		if failed == len(args) {
			return fmt.Errorf("all uploads failed")
		}
		return nil
	},
}

// --- games command ---

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "Manage registered games",
}

var gamesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered games",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		games, err := db.ListGames()
		if err != nil {
			return err
		}

		if len(games) == 0 {
			fmt.Println("No games registered. Add one with: rulechat upload <rulebook.md>")
			return nil
		}

		fmt.Println("Registered games:")
		fmt.Println()
		for _, g := range games {
			fmt.Printf("  %s: %s (%d rules, %s)\n", g.GameID, g.Name, g.RuleCount, g.Complexity)
			if len(g.Categories) > 0 {
				fmt.Printf("        categories: %s\n", strings.Join(g.Categories, ", "))
			}
		}
		return nil
	},
}

var gamesDeleteCmd = &cobra.Command{
	Use:   "delete [game_id]",
	Short: "Delete a game and all its rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		gameID := args[0]
		game, err := db.GetGame(gameID)
		if err != nil {
			return fmt.Errorf("game %s not found", gameID)
		}

		if err := db.DeleteGame(gameID); err != nil {
			return err
		}
		fmt.Printf("Deleted %s (%s) and its rules.\n", gameID, game.Name)
		return nil
	},
}

var gamesValidateCmd = &cobra.Command{
	Use:   "validate [game_id]",
	Short: "Check a game's data integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var ids []string
		if len(args) > 0 {
			ids = args
		} else {
			games, err := db.ListGames()
			if err != nil {
				return err
			}
			for _, g := range games {
				ids = append(ids, g.GameID)
			}
		}

		for _, id := range ids {
			report, err := db.ValidateGame(id)
			if err != nil {
				fmt.Printf("  %s: %v\n", id, err)
				continue
			}
			state := "OK"
			if !report.Valid {
				state = "ISSUES"
			}
			fmt.Printf("  %s: %s (%d rules)\n", id, state, report.RuleCount)
			for _, issue := range report.Issues {
				fmt.Printf("        %s\n", issue)
			}
			if report.AutoFixesApplied > 0 {
				fmt.Printf("        %d auto-fix(es) applied\n", report.AutoFixesApplied)
			}
		}
		return nil
	},
}

func init() {
	gamesCmd.AddCommand(gamesListCmd)
	gamesCmd.AddCommand(gamesDeleteCmd)
	gamesCmd.AddCommand(gamesValidateCmd)
}

// --- query command ---

var queryCmd = &cobra.Command{
	Use:   "query [game_id] [question...]",
	Short: "Ask a rules question from the command line",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		gameID := args[0]
		question := strings.Join(args[1:], " ")

		game, err := db.GetGame(gameID)
		if err != nil {
			return fmt.Errorf("game %s not found", gameID)
		}

		rules, err := db.RulesForGame(gameID)
		if err != nil {
			return err
		}

		provider, _, _ := buildAI()
		responder := respond.New(provider, cfg.AI.Timeout(), cfg.AI.MaxTokens)

		ranked := scorer.Rank(question, rules)
		result := responder.Answer(context.Background(), question, game, ranked)

		fmt.Printf("%s\n\n", result.Response.Summary.Text)
		for _, section := range result.Response.Sections {
			if section.ID == "direct_answer" || section.ID == "answer" {
				continue
			}
			fmt.Printf("%s:\n%s\n\n", section.Title, section.Content)
		}
		if len(result.Response.Sources) > 0 {
			fmt.Println("Sources:")
			for _, src := range result.Response.Sources {
				fmt.Printf("  - %s\n", src.Reference)
			}
		}
		fmt.Printf("\n(%s, confidence %.2f)\n", result.SearchMethod, result.Response.Summary.Confidence)
		return nil
	},
}

// --- helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "rulechat.db"))
}

func buildAI() (llm.Provider, llm.Embedder, *llm.UsageLog) {
	usage := llm.NewUsageLog()
	opts := llm.Options{
		Provider:        cfg.AI.Provider,
		OpenAIModel:     cfg.AI.OpenAIModel,
		OpenAIKeyEnv:    cfg.AI.OpenAIKeyEnv,
		AnthropicModel:  cfg.AI.AnthropicModel,
		AnthropicKeyEnv: cfg.AI.AnthropicKeyEnv,
		OllamaModel:     cfg.AI.OllamaModel,
		OllamaURL:       cfg.AI.OllamaURL,
		Timeout:         cfg.AI.Timeout(),
		Usage:           usage,
	}

	provider := llm.NewProvider(opts)
	var embedder llm.Embedder
	if cfg.AI.Embeddings {
		embedder = llm.NewEmbedder(opts)
	}
	return provider, embedder, usage
}

func buildParser() ingest.UploadParser {
	if cfg.Ingest.Parser == "simple" {
		return ingest.SimpleParser{}
	}
	return ingest.FullParser{}
}
