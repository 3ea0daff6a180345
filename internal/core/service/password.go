package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// checkPasswordLength rejects passwords longer than bcrypt can hash. The
// violation is reported against field.
func checkPasswordLength(field, password string) error {
	if len(password) > domain.MaxPasswordBytes {
		return domain.NewValidationError(field, fmt.Sprintf("%s must be at most %d bytes", field, domain.MaxPasswordBytes))
	}
	return nil
}

func hashPassword(password string, cost int) (string, error) {
	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return err == nil
}

// resolveRoleNames maps a user's role ids to names. Ids that no longer
// resolve are skipped.
func resolveRoleNames(ctx context.Context, roles ports.RoleService, log zerolog.Logger, ids []string) ([]domain.RoleName, error) {
	names := make([]domain.RoleName, 0, len(ids))
	for _, id := range ids {
		r, err := roles.GetRole(ctx, id)
		if errors.Is(err, domain.ErrRoleNotFound) {
			log.Warn().Str("role_id", id).Msg("user holds unknown role id")
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, r.Name)
	}
	return names, nil
}

// actorFrom names the administrator performing a request, if known.
func actorFrom(ctx context.Context) string {
	if p, ok := domain.PrincipalFrom(ctx); ok {
		return p.Username
	}
	return ""
}
