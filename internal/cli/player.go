package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cosmotablas-service/internal/app"
	"cosmotablas-service/internal/config"
	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/infra/sqlite"
	"cosmotablas-service/internal/remote"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

const defaultLocalDB = "cosmotablas.db"

// player bundles the local records state of one CLI invocation.
type player struct {
	service    *app.PlayerService
	ledger     *app.Ledger
	store      *sqlite.Store
	dispatcher *remote.Dispatcher
}

func openPlayer(ctx context.Context, cfg config.Config, remoteURL string, logger *slog.Logger) (*player, error) {
	dbPath := cfg.Client.DBPath
	if dbPath == "" {
		dbPath = defaultLocalDB
	}
	store, err := sqlite.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	ledger := app.NewLedger(store,
		app.WithCapacity(config.IntOr(cfg.Client.LedgerCapacity, app.DefaultLedgerCapacity)),
		app.WithLedgerLogger(logger),
	)
	// Unreadable local data must not stop the game; the session simply
	// starts from an empty ledger or tally.
	if err := ledger.Load(ctx); err != nil {
		logger.Warn("local_ledger_unavailable", "path", dbPath, "err", err)
	}
	mistakes := app.NewMistakeAggregator(store, logger)
	if err := mistakes.Load(ctx); err != nil {
		logger.Warn("local_mistakes_unavailable", "path", dbPath, "err", err)
	}

	opts := []app.PlayerOption{
		app.WithPlayerLogger(logger),
		app.WithChallengeSlots(config.IntOr(cfg.Client.ChallengeSlots, app.DefaultChallengeSlots)),
	}
	p := &player{ledger: ledger, store: store}

	if remoteURL == "" {
		remoteURL = cfg.Client.RemoteURL
	}
	if remoteURL != "" {
		timeout := config.TTLDuration(cfg.Client.SubmitTimeout, 10*time.Second)
		client, err := remote.NewClient(remoteURL, timeout)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		p.dispatcher = remote.NewDispatcher(context.Background(), timeout)
		opts = append(opts, app.WithRemote(client, p.dispatcher))
	}
	p.service = app.NewPlayerService(ledger, mistakes, opts...)
	return p, nil
}

// Close waits for background submissions and closes the local store.
func (p *player) Close() error {
	if p.dispatcher != nil {
		p.dispatcher.Wait()
	}
	return p.store.Close()
}

// NewRecordCmd completes a session for a player and prints its report.
func NewRecordCmd(configPath *string) *cobra.Command {
	var (
		out       domain.SessionOutcome
		misses    []string
		remoteURL string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a finished session in the local ledger and mirror it to the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseMisses(misses)
			if err != nil {
				return err
			}
			out.Misses = keys

			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, err := openPlayer(cmd.Context(), cfg, remoteURL, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.service.CompleteSession(cmd.Context(), out)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&out.PlayerID, "player", "", "player id")
	cmd.Flags().StringVar(&out.PlayerName, "name", "", "display name")
	cmd.Flags().IntVar(&out.TableNumber, "table", 0, "table number (2-9, or 99 for a challenge)")
	cmd.Flags().Int64Var(&out.ElapsedMs, "elapsed-ms", 0, "session duration in milliseconds")
	cmd.Flags().IntVar(&out.Questions, "questions", 8, "number of questions in the session")
	cmd.Flags().StringSliceVar(&misses, "miss", nil, "first-attempt miss as TABLExMULTIPLIER, repeatable")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "gateway base url (overrides config)")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// NewLeaderboardCmd prints global boards, or local ones when the gateway is unreachable.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		table     int
		mode      string
		remoteURL string
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show global leaderboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, err := openPlayer(cmd.Context(), cfg, remoteURL, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			if table == 0 {
				return printJSON(cmd.OutOrStdout(), p.service.GlobalBoards(cmd.Context()))
			}
			if !domain.IsLedgerTable(table) {
				return domain.CheckStandardTable(table)
			}
			return printJSON(cmd.OutOrStdout(), p.service.TableBoard(cmd.Context(), table, domain.ParseBoardMode(mode)))
		},
	}
	cmd.Flags().IntVar(&table, "table", 0, "single table to show (default: all)")
	cmd.Flags().StringVar(&mode, "mode", string(domain.BoardModeBest), "best or all")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "gateway base url (overrides config)")
	return cmd
}

// NewChallengeCmd prints a challenge question set.
func NewChallengeCmd(configPath *string) *cobra.Command {
	var (
		playerID  string
		global    bool
		remoteURL string
	)
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Build a challenge from a player's or everyone's weak spots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if playerID == "" && !global {
				return fmt.Errorf("either --player or --global is required")
			}
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, err := openPlayer(cmd.Context(), cfg, remoteURL, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			if global {
				questions, err := p.service.GlobalChallengeQuestions(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), questions)
			}
			return printJSON(cmd.OutOrStdout(), p.service.ChallengeQuestions(playerID))
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "player whose mistakes drive the challenge")
	cmd.Flags().BoolVar(&global, "global", false, "use the gateway's population-wide mistakes")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "gateway base url (overrides config)")
	return cmd
}

// parseMisses turns "7x8" style flags into question keys.
func parseMisses(raw []string) ([]domain.QuestionKey, error) {
	keys := make([]domain.QuestionKey, 0, len(raw))
	for _, r := range raw {
		table, mult, ok := strings.Cut(strings.ToLower(strings.TrimSpace(r)), "x")
		if !ok {
			return nil, fmt.Errorf("invalid miss %q: want TABLExMULTIPLIER", r)
		}
		t, err1 := strconv.Atoi(table)
		m, err2 := strconv.Atoi(mult)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid miss %q: want TABLExMULTIPLIER", r)
		}
		keys = append(keys, domain.QuestionKey{Table: t, Multiplier: m})
	}
	return keys, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
