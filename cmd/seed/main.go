// Command seed loads the permission catalog and system roles, and optionally
// creates a super admin account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/config"
	"royalty-admin/internal/database"
	"royalty-admin/internal/logging"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/service"

	"golang.org/x/term"
)

func main() {
	email := flag.String("admin-email", "", "create a super admin with this email")
	name := flag.String("admin-name", "Super Admin", "display name for the super admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.IsRelease())

	if err := run(context.Background(), cfg, *email, *name); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, email, name string) error {
	db, err := database.NewConnection(cfg.DBDriver, cfg.DSN(), logging.GormLogger(cfg.LogLevel))
	if err != nil {
		return err
	}

	tx := repository.NewTransactionManager(db)
	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	audit := repository.NewAuditRepository(db)

	roleService := service.NewRoleService(service.RoleServiceDeps{
		Tx:          tx,
		Roles:       roles,
		Permissions: repository.NewPermissionRepository(db),
		Users:       users,
		Audit:       audit,
	})
	res, err := roleService.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("catalog: %d permissions\n", res.Permissions)
	fmt.Printf("roles created: %s\n", joinOrNone(res.RolesCreated))
	fmt.Printf("defaults applied: %s\n", joinOrNone(res.RolesSeeded))

	if email == "" {
		return nil
	}
	password, err := readPassword()
	if err != nil {
		return err
	}
	userService := service.NewUserService(tx, users, roles, audit, nil, nil)
	user, err := userService.CreateUser(ctx, service.Actor{}, service.CreateUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: name,
		Role:        permission.RoleSuperAdmin,
	})
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			fmt.Printf("super admin %s already exists\n", email)
			return nil
		}
		return err
	}
	fmt.Printf("super admin created: %s (%s)\n", user.Email, user.ID)
	return nil
}

// readPassword prefers SEED_ADMIN_PASSWORD and prompts on a terminal otherwise.
func readPassword() (string, error) {
	if p := os.Getenv("SEED_ADMIN_PASSWORD"); p != "" {
		return validatePassword(p)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("SEED_ADMIN_PASSWORD must be set when stdin is not a terminal")
	}
	fmt.Print("Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return validatePassword(string(b))
}

func validatePassword(p string) (string, error) {
	if len(p) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	return p, nil
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
