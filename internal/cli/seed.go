package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speaking-assessment-service/internal/config"
	"speaking-assessment-service/internal/infra/memory"
	pgloader "speaking-assessment-service/internal/infra/postgres"
	"speaking-assessment-service/internal/logger"
)

// NewSeedCmd loads a YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if file == "" {
				file = cfg.Questions.File
			}
			if file == "" {
				return fmt.Errorf("no question bank file given")
			}
			sets, err := memory.ReadBankFile(file)
			if err != nil {
				return err
			}

			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := pgloader.NewQuestionLoader(pool)
			for _, set := range sets {
				if err := loader.SaveQuestions(ctx, set); err != nil {
					return err
				}
				log.Info("question set seeded",
					zap.String("unit", set.Unit),
					zap.String("level", set.Level),
					zap.Int("questions", len(set.Questions)),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML question bank (defaults to questions.file)")
	return cmd
}
