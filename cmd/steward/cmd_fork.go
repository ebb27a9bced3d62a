package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/stewardhq/steward/src/config"
	"github.com/stewardhq/steward/src/storage"
)

// ForkCmd creates a new conversation from the prefix of a stored one at a
// message ID or tool-call ID.
type ForkCmd struct {
	Conversation string `arg:"" help:"Source conversation ID"`
	Target       string `arg:"" help:"Message ID or tool-call ID to fork at"`
	Title        string `help:"Title for the new conversation"`
	DBPath       string `help:"Database path (defaults to config)"`
}

func (c *ForkCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, _, err := loadConfigAndProfile(cli)
	if err != nil {
		return err
	}
	dbPath := c.DBPath
	if dbPath == "" {
		dbPath = cfg.Storage.DatabasePath
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	title := c.Title
	if title == "" {
		title = fmt.Sprintf("fork of %s", c.Conversation)
	}

	fork, err := storage.ForkConversation(context.Background(), db, c.Conversation, c.Target, title)
	if err != nil {
		return err
	}

	forkLog, err := storage.LoadLog(context.Background(), db.DB(), fork.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Created conversation %s (%d messages)\n", fork.ID, forkLog.Len())
	return nil
}

// MigrateCmd manages database migrations.
type MigrateCmd struct {
	Up MigrateUpCmd `cmd:"" default:"1" help:"Apply pending migrations"`
}

// MigrateUpCmd opens the database, which applies pending migrations.
type MigrateUpCmd struct {
	DBPath string `help:"Database path (defaults to config)"`
}

func (c *MigrateUpCmd) Run(ctx *kong.Context, cli *CLI) error {
	dbPath := c.DBPath
	if dbPath == "" {
		dbPath = config.DefaultStoragePaths().DatabasePath
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Database ready: %s\n", dbPath)
	return nil
}
