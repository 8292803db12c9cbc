package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/handler"
	"github.com/vrash12/marcy/internal/middleware"
	"github.com/vrash12/marcy/internal/models"
	"github.com/vrash12/marcy/internal/repository"
	"github.com/vrash12/marcy/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Career recommendation classifier service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default: $CONFIG_PATH or configs/config.yml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "build-dataset",
		Short: "Build the training CSV from the questionnaire database",
		RunE:  runBuildDataset,
	})

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Build the dataset, fit a model and save it to the model path",
		RunE:  runTrain,
	}
	trainCmd.Flags().Bool("from-csv", false, "Train on the existing training CSV instead of querying the database")
	rootCmd.AddCommand(trainCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate synthetic questionnaire answers",
		RunE:  runSeed,
	}
	seedCmd.Flags().Bool("migrate", false, "Create the questionnaire tables first")
	seedCmd.Flags().Bool("reset", false, "Delete existing responses and recommendations first")
	seedCmd.Flags().String("csv", "", "Write a training CSV to this path instead of the database")
	seedCmd.Flags().Bool("offline", false, "With --csv, use the built-in question set and skip the database")
	seedCmd.Flags().Int("students", 0, "Number of students (default from config)")
	rootCmd.AddCommand(seedCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for POST /retrain",
		RunE:  runToken,
	}
	tokenCmd.Flags().String("user", "admin", "Token subject")
	tokenCmd.Flags().String("role", models.RoleAdmin, "Role claim")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default from config)")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	logger.Info("Starting recommendation service...")

	if a.cfg.Server.BootstrapOnStart {
		if _, err := a.predictor.Ensure(cmd.Context()); err != nil {
			logger.Warn("No model served yet, predict will retry on demand", zap.Error(err))
		}
	}

	gin.SetMode(a.cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(a.cfg.Server.CORSOrigins))

	apiHandler := handler.NewHandler(a.predictor, a.cfg.Server.RedirectURL, logger)
	apiHandler.RegisterRoutes(router, middleware.AdminAuth([]byte(a.cfg.Security.JWTSecret), logger))

	srv := &http.Server{
		Addr:    a.cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Recommendation service is running",
		zap.String("address", srv.Addr),
		zap.Bool("retrain_auth", a.cfg.Security.JWTSecret != ""))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func runBuildDataset(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.assembler.Build(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows x %d features to %s\n", ds.Len(), len(ds.FeatureNames), a.cfg.Storage.DataPath)
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	fromCSV, _ := cmd.Flags().GetBool("from-csv")

	var (
		a   *app
		err error
	)
	if fromCSV {
		a, err = newOfflineApp(cmd)
	} else {
		a, err = newApp(cmd, true)
	}
	if err != nil {
		return err
	}
	defer a.Close()

	var ds *dataset.Dataset
	if fromCSV {
		ds, err = dataset.ReadCSV(a.cfg.Storage.DataPath, a.cfg.Training.LabelColumn)
		if err == nil {
			err = ds.Validate(a.cfg.Training.MinRows)
		}
	} else {
		ds, err = a.assembler.Build(cmd.Context())
	}
	if err != nil {
		return err
	}

	m, err := a.trainer.Fit(cmd.Context(), ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Model %s saved to %s (classes %v)\n", m.ID, a.cfg.Storage.ModelPath, m.Classes())
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	migrate, _ := cmd.Flags().GetBool("migrate")
	reset, _ := cmd.Flags().GetBool("reset")
	csvPath, _ := cmd.Flags().GetString("csv")
	offline, _ := cmd.Flags().GetBool("offline")
	students, _ := cmd.Flags().GetInt("students")

	var (
		a   *app
		err error
	)
	if offline {
		a, err = newOfflineApp(cmd)
	} else {
		a, err = newApp(cmd, true)
	}
	if err != nil {
		return err
	}
	defer a.Close()

	seedCfg := seed.Config{
		Students:    a.cfg.Seed.Students,
		NumOptions:  a.cfg.Seed.NumOptions,
		TechFields:  a.cfg.Seed.TechFields,
		RandomState: a.cfg.Seed.RandomState,
		LabelColumn: a.cfg.Training.LabelColumn,
	}
	if students > 0 {
		seedCfg.Students = students
	}

	if offline {
		if csvPath == "" {
			return errors.New("--offline requires --csv")
		}
		_, err := seed.NewSeeder(nil, seedCfg, a.logger).WriteCSV(csvPath, seed.DefaultQuestions(seedCfg.TechFields))
		return err
	}

	if migrate {
		if err := repository.MigrateDB(a.db, a.logger); err != nil {
			return err
		}
	}

	seeder := seed.NewSeeder(a.repo, seedCfg, a.logger)
	if csvPath != "" {
		qs, err := seeder.Questions(cmd.Context())
		if err != nil {
			return err
		}
		_, err = seeder.WriteCSV(csvPath, qs)
		return err
	}

	n, err := seeder.SeedDatabase(cmd.Context(), reset)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d students\n", n)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret (JWT_SECRET) is not set")
	}
	if ttl <= 0 {
		ttl = cfg.Security.TokenTTL
	}

	token, exp, err := middleware.NewToken([]byte(cfg.Security.JWTSecret), user, role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
	return nil
}
