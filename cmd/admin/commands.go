package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"soil-monitor/internal/core/config"
	"soil-monitor/internal/core/database"
	"soil-monitor/internal/core/logger"
	"soil-monitor/internal/domain"
	"soil-monitor/internal/feature/soil"
	"soil-monitor/internal/feature/user"
	"soil-monitor/internal/repo"
	"soil-monitor/internal/threshold"
	"soil-monitor/pkg/utils"
)

// env 每条命令按需加载的运行环境
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	fin func()
}

func (e *env) close() {
	if e.db != nil {
		_ = database.Close(e.db)
	}
	e.fin()
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operator tooling for the soil monitoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to the yaml config")

	// withDB 加载配置、日志并打开数据库
	withDB := func() (*env, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		log, fin := logger.New(cfg.Log)
		db, err := database.NewGorm(database.Opts{
			Driver:             cfg.DB.Driver,
			DSN:                cfg.DB.DSN,
			Username:           cfg.DB.Username,
			Password:           cfg.DB.Password,
			MaxOpenConns:       cfg.DB.MaxOpenConns,
			MaxIdleConns:       cfg.DB.MaxIdleConns,
			ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
			LogLevel:           cfg.DB.LogLevel,
		}, log)
		if err != nil {
			fin()
			return nil, fmt.Errorf("open db: %w", err)
		}
		return &env{cfg: cfg, log: log, db: db, fin: fin}, nil
	}

	root.AddCommand(
		newMigrateCmd(withDB),
		newRangesCmd(),
		newEvaluateCmd(),
		newAuditCmd(withDB),
	)
	return root
}

func newMigrateCmd(withDB func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the usuarios, solo and condicoes_anormais tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := withDB()
			if err != nil {
				return err
			}
			defer e.close()
			if err := repo.Migrate(e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			e.log.Info("automigrate done", zap.String("driver", e.cfg.DB.Driver))
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newRangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges",
		Short: "Print the ideal range table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PARAMETER\tLOW\tHIGH\tLOW ACTION\tHIGH ACTION")
			for _, r := range threshold.Ranges() {
				fmt.Fprintf(tw, "%s\t%g\t%g\t%s\t%s\n", r.Parameter, r.Low, r.High, r.LowAction, r.HighAction)
			}
			return tw.Flush()
		},
	}
}

func newEvaluateCmd() *cobra.Command {
	var m domain.Measurements
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one set of measurements without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			rep := threshold.Evaluate(domain.Reading{Measurements: m})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(struct {
				Conditions map[string]string `json:"conditions"`
				Treatments map[string]string `json:"treatments"`
			}{rep.Conditions, rep.Treatments})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&m.PH, "ph", 0, "soil pH")
	f.Float64Var(&m.Umidade, "moisture", 0, "moisture (%)")
	f.Float64Var(&m.Temperatura, "temperature", 0, "temperature (°C)")
	f.Float64Var(&m.Nitrogenio, "nitrogen", 0, "nitrogen")
	f.Float64Var(&m.Fosforo, "phosphorus", 0, "phosphorus")
	f.Float64Var(&m.Potassio, "potassium", 0, "potassium")
	f.Float64Var(&m.Microbioma, "microbiome", 0, "microbiome index")
	for _, name := range []string{"ph", "moisture", "temperature", "nitrogen", "phosphorus", "potassium", "microbiome"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newAuditCmd(withDB func() (*env, error)) *cobra.Command {
	var userID, readingID uint
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Persist a user's current deviations into condicoes_anormais, or show a reading's stored rows",
		Example: `  admin audit --user 3
  admin audit --show 17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := withDB()
			if err != nil {
				return err
			}
			defer e.close()
			svc := soil.NewService(repo.NewReadingRepo(e.db), repo.NewAnomalyRepo(e.db))

			if cmd.Flags().Changed("show") {
				return showTrail(cmd, svc, readingID)
			}

			users := user.NewService(repo.NewUserRepo(e.db), utils.BcryptHasher{Cost: e.cfg.Auth.BcryptCost})
			ok, err := users.Exists(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
			}

			n, err := svc.Audit(cmd.Context(), userID)
			if err != nil {
				return err
			}
			e.log.Info("audit done", zap.Uint("user_id", userID), zap.Int("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows written\n", n)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "evaluate and persist this user's readings")
	cmd.Flags().UintVar(&readingID, "show", 0, "print the stored audit rows of this reading")
	cmd.MarkFlagsOneRequired("user", "show")
	cmd.MarkFlagsMutuallyExclusive("user", "show")
	return cmd
}

func showTrail(cmd *cobra.Command, svc *soil.Service, readingID uint) error {
	// Owner 顺带校验读数存在
	if _, err := svc.Owner(cmd.Context(), readingID); err != nil {
		return err
	}
	rows, err := svc.AuditTrail(cmd.Context(), readingID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARAMETER\tCONDITION\tACTION\tCREATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Parameter, r.Condition, r.Action, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
