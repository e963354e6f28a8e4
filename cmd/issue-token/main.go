package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// issue-token signs an admin bearer token with JWT_SECRET for the monitor and
// reporting endpoints. Staff accounts live in the admin subsystem; this is
// for operators and local testing.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	adminID := flag.Int("admin", 1, "admin user id")
	roleID := flag.Int("role", 1, "admin role id")
	perms := flag.String("perms", strings.Join([]string{
		service.PermissionSessionsRead,
		service.PermissionExamsMonitor,
		service.PermissionExamsWrite,
	}, ","), "comma-separated permission codes")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *ttl <= 0 {
		fmt.Fprintln(os.Stderr, "ttl must be positive")
		os.Exit(2)
	}

	var permissions []string
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	authService := service.NewAuthService(cfg.JWTSecret)
	token, err := authService.GenerateAdminToken(*adminID, *roleID, permissions, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().
		Int("admin_id", *adminID).
		Strs("permissions", permissions).
		Time("expires_at", time.Now().Add(*ttl)).
		Msg("Admin token issued")
	fmt.Println(token)
}
