// cmd/claimsctl/main.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/database"
	"github.com/javajoker/claimdesk-backend/internal/logger"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

// errViolations makes integrity-check exit non-zero without printing twice.
var errViolations = errors.New("integrity violations found")

var rootCmd = &cobra.Command{
	Use:           "claimsctl",
	Short:         "Claim desk operator tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CLAIMSCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(integrityCheckCmd())
	rootCmd.AddCommand(tokenCmd())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB, log logrus.FieldLogger) error {
				return database.RunMigrations(db, log)
			})
		},
	}
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <claim-id>",
		Short: "Print a claim's timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid claim id: %w", err)
			}
			return withDB(func(db *gorm.DB, log logrus.FieldLogger) error {
				timeline := services.NewTimelineService(db, nil)
				rows, err := timeline.History(cmd.Context(), claimID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				if len(rows) == 0 {
					fmt.Println("no timeline entries")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Event", "Action", "Status", "Stage", "Actor", "Role", "Note"})
				for _, r := range rows {
					tw.AppendRow(table.Row{
						r.CreatedAt.Format(time.RFC3339), r.EventType, r.Action, r.Status, r.Stage, r.ActorID, r.ActorRole, r.Note,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func integrityCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity-check",
		Short: "List claims whose status and stage conflict",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB, log logrus.FieldLogger) error {
				violations, err := services.AuditClaims(cmd.Context(), db)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if err := printJSON(violations); err != nil {
						return err
					}
				} else if len(violations) == 0 {
					fmt.Println("no conflicting claims")
				} else {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Claim", "Number", "Status", "Stage", "Reason"})
					for _, v := range violations {
						tw.AppendRow(table.Row{v.ClaimID, v.ClaimNumber, v.Status, v.Stage, v.Reason})
					}
					tw.AppendFooter(table.Row{"", "", "", "Total", len(violations)})
					tw.Render()
				}
				if len(violations) > 0 {
					return errViolations
				}
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID     string
		role       string
		agencyID   string
		hospitalID string
		ttlHours   int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Environment == "production" {
				return errors.New("refusing to mint tokens in production")
			}
			if !models.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			id := uuid.New()
			if userID != "" {
				if id, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid user id: %w", err)
				}
			}
			agency, err := utils.ParseOptionalUUID(agencyID)
			if err != nil {
				return fmt.Errorf("invalid agency id: %w", err)
			}
			hospital, err := utils.ParseOptionalUUID(hospitalID)
			if err != nil {
				return fmt.Errorf("invalid hospital id: %w", err)
			}
			if ttlHours <= 0 {
				ttlHours = cfg.JWT.AccessTokenTTL
			}

			utils.SetJWTSecret(cfg.JWT.SecretKey)
			token, err := utils.GenerateJWT(id, role, agency, hospital, ttlHours)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAgent), "actor role")
	cmd.Flags().StringVar(&agencyID, "agency-id", "", "agency id")
	cmd.Flags().StringVar(&hospitalID, "hospital-id", "", "hospital id")
	cmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "token lifetime in hours")
	return cmd
}

func withDB(fn func(*gorm.DB, logrus.FieldLogger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log, "claimsctl", cfg.Environment)

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return err
	}
	defer database.Close(db, log)
	return fn(db, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
