package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"livequiz/internal/app"
	"livequiz/internal/config"
	"livequiz/internal/domain"
	"livequiz/internal/infra/memory"
	"livequiz/internal/infra/postgres"
)

// NewResultsCmd prints the leaderboard of a stored session. Ops aid: works
// against the configured Postgres without touching the running server.
func NewResultsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "results <code>",
		Short: "Print the leaderboard of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResults(cmd.Context(), *configPath, args[0])
		},
	}
}

func printResults(ctx context.Context, configPath, code string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	coordinator := app.NewCoordinator(store, memory.NewQuizRepository(store, time.Minute), app.NewRegistry(), nopPublisher{})

	session, _, err := coordinator.SessionView(ctx, code)
	if err != nil {
		return err
	}
	entries, err := coordinator.Leaderboard(ctx, code)
	if err != nil {
		return err
	}

	fmt.Printf("session %s (%s), hosted by %s\n", session.Code, session.Status, session.HostName)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rank", "Player", "Score", "Correct", "Answered"})
	for _, entry := range entries {
		table.Append([]string{
			strconv.Itoa(entry.Rank),
			entry.PlayerName,
			strconv.Itoa(entry.Score),
			strconv.Itoa(entry.CorrectAnswers),
			strconv.Itoa(entry.AnswersSubmitted),
		})
	}
	table.Render()
	return nil
}

// nopPublisher satisfies the coordinator's publisher for read-only use.
type nopPublisher struct{}

func (nopPublisher) ToRoom(string, domain.Event) {}
func (nopPublisher) ToConn(string, domain.Event) {}
