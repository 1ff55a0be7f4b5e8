package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// CreateUserCommand creates an account without going through the API,
// typically the first administrator.
type CreateUserCommand struct {
	Username string
	Email    string
	Password string
	Role     string
}

func newCreateUserCommand(cfg *config.Config) *cobra.Command {
	c := &CreateUserCommand{}
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Example: `  library create-user --username admin --email admin@library.example --password 'changeme123'
  library create-user --username thandi --email thandi@example.com --password 'readmore42' --role librarian`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&c.Username, "username", "u", "", "Username (required)")
	f.StringVarP(&c.Email, "email", "e", "", "Email address (required)")
	f.StringVar(&c.Password, "password", "", "Password, at least 8 characters (required)")
	f.StringVarP(&c.Role, "role", "r", string(entities.UserRoleAdmin), "Role: admin, librarian, member or guest")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *CreateUserCommand) Run(cfg *config.Config, out io.Writer) error {
	role, err := auth.RoleFromParam(c.Role)
	if err != nil {
		return fmt.Errorf("%w: %q", err, c.Role)
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(db.DB, cfg.Auth)
	user, err := service.CreateUser(strings.TrimSpace(c.Username), strings.TrimSpace(c.Email), c.Password, role)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return fmt.Errorf("user %q already exists", c.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(out, "Created %s %s (id %d)\n", user.Role, user.Username, user.ID)
	return nil
}
