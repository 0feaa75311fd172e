package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/medsecure/telehealth/internal/auth"
	"github.com/medsecure/telehealth/internal/core"
	"github.com/medsecure/telehealth/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	targetKnowledge = "knowledge"
	targetCorpus    = "corpus"

	// Spaces out embedding calls during corpus ingestion.
	embedInterval = 40 * time.Millisecond
)

func newIngestCmd(a *app) *cobra.Command {
	var file, target string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a | question | answer | markdown table and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target != targetKnowledge && target != targetCorpus {
				return fmt.Errorf("unknown --target %q (want %s or %s)", target, targetKnowledge, targetCorpus)
			}
			ctx := cmd.Context()

			dbStore, err := store.NewSQLiteStore(a.cfg.DatabaseURL, a.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbStore.Close()

			var n int
			if target == targetKnowledge {
				kb := core.NewKnowledgeBase(dbStore, a.cfg.StaffMatchMode)
				n, err = dbStore.IngestKnowledgeFromFile(ctx, file, kb.Key)
			} else {
				gemini, gerr := core.NewGeminiService(ctx, a.cfg.GeminiAPIKey, a.cfg.EmbeddingModel, a.cfg.GeminiChatModel, a.logger)
				if gerr != nil {
					return gerr
				}
				defer gemini.Close()
				n, err = dbStore.IngestCorpusFromFile(ctx, file, gemini.Embed, embedInterval)
			}
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			a.logger.Info("ingestion complete", zap.String("target", target), zap.Int("rows", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "data.md", "markdown file with a two-column table")
	cmd.Flags().StringVar(&target, "target", targetKnowledge, "knowledge or corpus")
	return cmd
}

func newCreateStaffCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a staff account for the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			dbStore, err := store.NewSQLiteStore(a.cfg.DatabaseURL, a.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbStore.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user, err := dbStore.CreateStaffUser(cmd.Context(), username, hash)
			if err != nil {
				return err
			}
			a.logger.Info("staff user created", zap.String("id", user.ID), zap.String("username", user.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "staff username")
	cmd.Flags().StringVar(&password, "password", "", "staff password")
	return cmd
}
