package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/spf13/cobra"
)

var adminFlags struct {
	email    string
	username string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote an existing one",
	Long: `Create an admin account. When the email already belongs to a user, that
user is promoted and their password reset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(adminFlags.email))
		username := strings.TrimSpace(adminFlags.username)
		if email == "" || adminFlags.password == "" {
			return errors.New("--email and --password are required")
		}
		if err := models.CheckPassword("password", adminFlags.password); err != nil {
			return err
		}
		if username == "" {
			username = strings.SplitN(email, "@", 2)[0]
		}

		db, err := database.OpenDB(appConfig.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		id, created, err := upsertAdmin(ctx, db, email, username, adminFlags.password, appConfig.BcryptCost)
		if err != nil {
			return err
		}

		log := logging.NewPackageLogger("admin")
		log.Info().Int64(logging.USER, id).Bool("created", created).Str("email", email).Msg("admin account ready")
		return nil
	},
}

// upsertAdmin inserts an admin user with a cart, or promotes the user that
// already owns email.
func upsertAdmin(ctx context.Context, db *sql.DB, email, username, password string, cost int) (int64, bool, error) {
	var pw models.Password
	if err := pw.Set(password, cost); err != nil {
		return 0, false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ? FOR UPDATE", email).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET is_admin = 1, password_hash = ? WHERE id = ?", pw.Hash, id); err != nil {
			return 0, false, err
		}
		return id, false, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES (?, ?, ?, 1)`, username, email, pw.Hash)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, false, fmt.Errorf("username %q is taken", username)
		}
		return 0, false, err
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, false, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT IGNORE INTO carts (user_id) VALUES (?)", id); err != nil {
		return 0, false, err
	}
	return id, true, tx.Commit()
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "admin email (required)")
	createAdminCmd.Flags().StringVar(&adminFlags.username, "username", "", "username (defaults to the email's local part)")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "password, at least 8 characters (required)")
	rootCmd.AddCommand(createAdminCmd)
}
