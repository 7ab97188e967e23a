package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BearBump/LockerTrack/config"
	"github.com/BearBump/LockerTrack/internal/logger"
	"github.com/BearBump/LockerTrack/internal/services/importer"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/BearBump/LockerTrack/internal/storage/pglocker"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type schemaInitializer interface {
	InitSchema(ctx context.Context) error
}

type deps struct {
	openStore func(cfg *config.Config) (storage.Store, func(), error)
	newLogger func(cfg *config.Config) (*zap.Logger, error)
	loadConfig func(path string) (*config.Config, error)
	out       io.Writer
}

func defaultDeps() deps {
	return deps{
		openStore: func(cfg *config.Config) (storage.Store, func(), error) {
			st, err := pglocker.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newLogger: func(cfg *config.Config) (*zap.Logger, error) {
			return logger.New(cfg.Log.Level, cfg.Log.Format, "locker-admin")
		},
		loadConfig: config.LoadConfig,
		out:        os.Stdout,
	}
}

func newRootCommand(d deps) *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "locker-admin",
		Short:         "Maintenance commands for the locker tracking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("configPath"), "path to the YAML config")

	load := func() (*config.Config, *zap.Logger, error) {
		if cfgPath == "" {
			return nil, nil, errors.New("--config or configPath env var is required")
		}
		cfg, err := d.loadConfig(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		log, err := d.newLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	root.AddCommand(newSchemaCommand(d, load), newImportCommand(d, load))
	return root
}

type loader func() (*config.Config, *zap.Logger, error)

func newSchemaCommand(d deps, load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			st, closeFn, err := d.openStore(cfg)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			si, ok := st.(schemaInitializer)
			if !ok {
				return errors.New("store does not manage a schema")
			}
			if err := si.InitSchema(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema is up to date")
			return nil
		},
	}
}

func newImportCommand(d deps, load loader) *cobra.Command {
	var (
		statusID   uint64
		groupID    uint64
		actingUser string
	)
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Upsert packages from a manifest spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open manifest")
			}
			defer func() { _ = f.Close() }()

			st, closeFn, err := d.openStore(cfg)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}

			opts := importer.Options{}
			if statusID > 0 {
				opts.StatusID = &statusID
			}
			if groupID > 0 {
				opts.GroupID = &groupID
			}
			if actingUser != "" {
				opts.ActingUser = &actingUser
			}

			// Events are not published from here; cached views expire on their TTL.
			pkgs := packages.New(st, nil, 0, nil, log.Named("packages"))
			sum, err := importer.New(pkgs, log.Named("importer")).Import(cmd.Context(), f, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(d.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				return err
			}
			if sum.Errors > 0 {
				return fmt.Errorf("%d of %d rows failed", sum.Errors, sum.Total)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&statusID, "status-id", 0, "status applied to every row")
	cmd.Flags().Uint64Var(&groupID, "group-id", 0, "group every row is filed under")
	cmd.Flags().StringVar(&actingUser, "acting-user", "locker-admin", "recorded on the history entries")
	return cmd
}
