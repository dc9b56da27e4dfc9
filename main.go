package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cpm/config"
	c "cpm/core"
	"cpm/data/loader"
	r "cpm/data/repos"
	sm "cpm/models"
	"cpm/report"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cpm",
	Short: "credit portfolio model",
	Long:  "monte carlo simulation of credit portfolio losses under a gaussian factor model",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// load in environment variables from .env file
		if err := godotenv.Load(); err != nil {
			log.Debugf(".env not loaded: %v", err)
		}

		var err error
		if cfg, err = config.Load(viper.GetViper()); err != nil {
			return err
		}
		return config.SetupLogging(cfg.Logging)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run a simulation on csv input files or a stored portfolio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		portfolioId, _ := cmd.Flags().GetInt64("portfolio-id")
		persist, _ := cmd.Flags().GetBool("persist")
		borrowers, _ := cmd.Flags().GetBool("borrowers")

		req := sm.SimulationRequest{
			InputDir:      input,
			Settings:      cfg.Simulation,
			Persist:       persist,
			IncludeLosses: true,
		}
		if cmd.Flags().Changed("portfolio-id") {
			req.PortfolioId = &portfolioId
			req.InputDir = ""
		}

		sc := c.ServiceContext{Context: ctx, Defaults: cfg.Simulation}
		if persist || req.PortfolioId != nil {
			pg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()
			sc.Store = pg
		}

		res, err := sc.RunSimulation(req)
		if err != nil {
			return err
		}

		report.PrintLossReport(os.Stdout, res.RunId, &res.Report, borrowers)

		if output == "" {
			output = input
		}
		if output == "" {
			return nil
		}
		path, err := loader.WriteLossDistribution(output, res.TrialLosses)
		if err != nil {
			return err
		}
		log.Infof("Loss distribution written to %s", path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "store csv input files as a portfolio in postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		portfolioId, _ := cmd.Flags().GetInt64("portfolio-id")

		pi, err := loader.ReadPortfolioInput(input)
		if err != nil {
			return err
		}

		// building it once rejects inconsistent input before anything is stored
		if _, err := c.BuildPortfolio(pi); err != nil {
			return err
		}

		pg, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.InsertPortfolioInput(ctx, portfolioId, pi); err != nil {
			return err
		}
		log.Infof("Imported %d borrowers from %s as portfolio %d", len(pi.Borrowers), input, portfolioId)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the simulation api",
	RunE: func(cmd *cobra.Command, args []string) error {
		// initialize context and signal handler, listen for interrupt and term signals
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := c.ServiceContext{Context: ctx, Defaults: cfg.Simulation, InputRoot: cfg.Server.InputRoot}
		if cfg.Database.Url != "" {
			pg, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()
			sc.Store = pg
		} else {
			log.Warn("No database configured, stored portfolios and persisted runs are unavailable")
		}
		if sc.InputRoot == "" {
			log.Warn("No input root configured, requests may read any directory on this host")
		}

		// get http server, makes all of the endpoints and routes
		s := c.GetHttpServer(sc, cfg.Server.Addr, cfg.Server.CorsOrigins)

		serverErr := make(chan error, 1)
		go func() {
			log.Infof("Starting cpm server on %s", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		select {
		case err := <-serverErr:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}
		log.Info("Received shutdown signal, shutting down gracefully...")

		// this gives the server 10 seconds to shutdown gracefully
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}

		log.Info("Server stopped successfully")
		return nil
	},
}

func connect(ctx context.Context) (*r.Postgres, error) {
	if cfg.Database.Url == "" {
		return nil, errors.New("database.url (or DATABASE_URL) is not set")
	}

	pg, err := r.GetPostgresConnection(ctx, cfg.Database.Url)
	if err != nil {
		return nil, err
	}
	if err := pg.CreateTables(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file, defaults to cpm.yaml in ./config, $HOME/.cpm or /etc/cpm")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	rootCmd.PersistentFlags().Int("num-trials", c.DefaultNumTrials, "number of monte carlo trials")
	rootCmd.PersistentFlags().Int("chunk-size", c.DefaultChunkSize, "trials per unit of parallel work")
	rootCmd.PersistentFlags().Uint64("seed", 0, "seed of the random streams")
	rootCmd.PersistentFlags().Int("workers", 0, "number of workers, 0 uses every cpu")
	rootCmd.PersistentFlags().String("database-url", "", "postgres connection string")

	simulateCmd.Flags().String("input", "", "directory of the csv input files")
	simulateCmd.Flags().String("output", "", "directory the loss distribution is written to, defaults to the input directory")
	simulateCmd.Flags().Int64("portfolio-id", 0, "simulate a portfolio stored in postgres instead of csv input")
	simulateCmd.Flags().Bool("persist", false, "store the run and its trial losses in postgres")
	simulateCmd.Flags().Bool("borrowers", false, "print the per borrower losses")

	importCmd.Flags().String("input", "", "directory of the csv input files")
	importCmd.Flags().Int64("portfolio-id", 1, "id the portfolio is stored under")
	_ = importCmd.MarkFlagRequired("input")

	serveCmd.Flags().String("addr", c.DefaultAddr, "listen address")

	bindings := map[string]string{
		"config":                "config",
		"logging.level":         "log-level",
		"simulation.num_trials": "num-trials",
		"simulation.chunk_size": "chunk-size",
		"simulation.seed":       "seed",
		"simulation.workers":    "workers",
		"database.url":          "database-url",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			log.WithError(err).Errorf("failed to bind flag %s", flag)
		}
	}
	if err := viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		log.WithError(err).Error("failed to bind flag addr")
	}

	rootCmd.AddCommand(simulateCmd, importCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
