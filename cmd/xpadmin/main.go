package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"terretahub/config"
	"terretahub/db"
	"terretahub/leveling"
	"terretahub/logging"
	"terretahub/services"
	"terretahub/store"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool

	logger    *zap.Logger
	dataStore *store.Mongo
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xpadmin",
	Short: "Operator tool for Terreta Hub levels and administrators",
	Long: `xpadmin talks directly to the Terreta Hub database.

It creates administrator accounts and applies the same level and experience
writes as the admin API, journaling every change in the XP ledger.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := db.ConnectMongoDB(cfg.Database.URI, logger); err != nil {
			return err
		}
		dataStore = store.NewMongo(db.MongoClient, db.MongoDatabase, cfg.Database.Transactions)
		return dataStore.EnsureIndexes(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		db.DisconnectMongoDB(context.Background())
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator or moderator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")

		admin, err := services.NewAdminService(dataStore).CreateAdmin(cmd.Context(), email, password, name, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Admin created\n  ID: %s\n  Email: %s\n  Name: %s\n  Role: %s\n",
			admin.ID.Hex(), admin.Email, admin.Name, admin.Role)
		return nil
	},
}

var setLevelCmd = &cobra.Command{
	Use:   "set-level <user-id> <level>",
	Short: "Force a member's level, topping experience up when needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		var level int
		if _, err := fmt.Sscan(args[1], &level); err != nil {
			return fmt.Errorf("invalid level %q", args[1])
		}

		update, err := levelSync().AssignLevel(cmd.Context(), userID, level)
		if err != nil {
			return err
		}
		printUpdate(cmd, update)
		return nil
	},
}

var setExperienceCmd = &cobra.Command{
	Use:   "set-experience <user-id> <experience>",
	Short: "Overwrite a member's experience and recompute the level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		var experience int
		if _, err := fmt.Sscan(args[1], &experience); err != nil {
			return fmt.Errorf("invalid experience %q", args[1])
		}

		update, err := levelSync().SetExperience(cmd.Context(), userID, experience)
		if err != nil {
			return err
		}
		printUpdate(cmd, update)
		return nil
	},
}

var awardCmd = &cobra.Command{
	Use:   "award <user-id> <action>",
	Short: "Award the fixed XP of an activity action",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		description, _ := cmd.Flags().GetString("description")

		update, err := services.NewActivityService(levelSync(), nil, logger).AddUserXP(cmd.Context(), userID, args[1], description)
		if err != nil {
			return err
		}
		printUpdate(cmd, update)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "Print a member's XP ledger, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := services.NewXpLedger(dataStore).History(cmd.Context(), userID, prefix, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %+6d  %s\n", e.CreatedAt.Format(time.RFC3339), e.XPAmount, e.Description)
		}
		return nil
	},
}

func levelSync() *services.ProfileLevelSync {
	return services.NewProfileLevelSync(dataStore, nil, logger)
}

func printUpdate(cmd *cobra.Command, update *services.LevelUpdate) {
	p := update.Profile
	fmt.Fprintf(cmd.OutOrStdout(), "%s: experience %d, level %d (%s)",
		p.ID.Hex(), p.Experience, p.Level, leveling.LevelName(p.Level))
	if update.LevelChanged() {
		fmt.Fprintf(cmd.OutOrStdout(), ", was level %d", update.OldLevel)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.Path(), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	createAdminCmd.Flags().String("email", "", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	createAdminCmd.Flags().String("name", "", "admin display name")
	createAdminCmd.Flags().String("role", "admin", "admin or moderator")
	for _, f := range []string{"email", "password", "name"} {
		createAdminCmd.MarkFlagRequired(f)
	}

	awardCmd.Flags().String("description", "", "ledger description override")

	historyCmd.Flags().String("prefix", "", "only rows whose description starts with this")
	historyCmd.Flags().Int("limit", 50, "maximum rows")

	rootCmd.AddCommand(createAdminCmd, setLevelCmd, setExperienceCmd, awardCmd, historyCmd)
}
