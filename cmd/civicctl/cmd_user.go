package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/database"
	"github.com/civicsafe/api/internal/model"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	seedEmail    string
	seedName     string
	seedPassword string
	seedRole     string
)

// seedUserCmd creates the first staff accounts; signup through the API can
// only grant a staff role when an admin is already signed in.
var seedUserCmd = &cobra.Command{
	Use:   "seed-user",
	Short: "Create or update a staff account",
	Long: `Create a credentials account with the given role.

An existing account with the same email keeps its id; its password, name and
role are replaced.`,
	Example: `  civicctl seed-user --email admin@example.org --password 'changeme123' --role ADMIN`,
	RunE:    runSeedUser,
}

func init() {
	seedUserCmd.Flags().StringVar(&seedEmail, "email", "", "account email (required)")
	seedUserCmd.Flags().StringVar(&seedName, "name", "", "display name")
	seedUserCmd.Flags().StringVar(&seedPassword, "password", "", "account password (required)")
	seedUserCmd.Flags().StringVar(&seedRole, "role", string(auth.RoleAdmin), "ADMIN, MODERATOR or USER")
	_ = seedUserCmd.MarkFlagRequired("email")
	_ = seedUserCmd.MarkFlagRequired("password")
}

func runSeedUser(cmd *cobra.Command, args []string) error {
	user, err := newSeedUser(seedEmail, seedName, seedPassword, seedRole)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close(db)

	var existing model.User
	err = db.WithContext(cmd.Context()).Where("email = ?", user.Email).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.WithContext(cmd.Context()).Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%d\n", user.Email, user.Role, user.ID)
	case err != nil:
		return fmt.Errorf("failed to look up user: %w", err)
	default:
		err := db.WithContext(cmd.Context()).Model(&existing).Updates(map[string]interface{}{
			"name":          user.Name,
			"password_hash": user.PasswordHash,
			"role":          user.Role,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s) id=%d\n", user.Email, user.Role, existing.ID)
	}
	return nil
}

func newSeedUser(email, name, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	r, ok := auth.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q (supported: ADMIN, MODERATOR, USER)", role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &model.User{
		Provider:     model.ProviderCredentials,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         string(r),
	}, nil
}
