package config

import (
	"fmt"
	"os"
	"strings"

	trackerrs "github.com/qaops/migratrack/internal/errors"
)

// resolveCredentials fills in missing auth material from role-scoped
// environment variables. Resolution order per credential:
//
//  1. explicit value in the config file (after ${VAR} expansion)
//  2. MIGRATRACK_<ROLE>_TOKEN / _USERNAME / _PASSWORD
//
// A credential the declared auth type requires that resolves to empty is an
// error; the pipeline must not start half-authenticated.
func resolveCredentials(cfg *Config) error {
	for _, role := range Roles() {
		src := &cfg.Sources.Primary
		if role == RoleSecondary {
			src = &cfg.Sources.Secondary
		}
		if err := resolveSourceCredentials(src, role); err != nil {
			return err
		}
	}
	return nil
}

func resolveSourceCredentials(src *SourceConfig, role SourceRole) error {
	if src.Auth.IsZero() {
		return nil
	}

	switch src.Auth.Type {
	case AuthTypeToken:
		if src.Auth.Token == "" {
			src.Auth.Token = roleEnv(role, "TOKEN")
		}
		if src.Auth.Token == "" {
			return trackerrs.CredentialsMissing(string(role), "token")
		}
	case AuthTypeBasic:
		if src.Auth.Username == "" {
			src.Auth.Username = roleEnv(role, "USERNAME")
		}
		if src.Auth.Password == "" {
			src.Auth.Password = roleEnv(role, "PASSWORD")
		}
		if src.Auth.Username == "" || src.Auth.Password == "" {
			return trackerrs.CredentialsMissing(string(role), "username/password")
		}
	default:
		return fmt.Errorf("source %s: unsupported auth type: %s", role, src.Auth.Type)
	}

	return nil
}

func roleEnv(role SourceRole, suffix string) string {
	key := fmt.Sprintf("MIGRATRACK_%s_%s", strings.ToUpper(string(role)), suffix)
	return os.Getenv(key)
}
