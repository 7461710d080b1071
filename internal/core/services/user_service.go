package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/clock"
	"djbook/pkg/logger"
	"djbook/pkg/security"
	"djbook/pkg/validation"

	"go.uber.org/zap"
)

// Roles anyone may pick at registration. Staff roles are granted by a SysAdmin.
var selfServiceRoles = map[domain.Role]bool{
	domain.RoleGuest:      true,
	domain.RoleDJ:         true,
	domain.RoleVenueOwner: true,
}

type userService struct {
	users  ports.UserRepository
	hasher *security.PasswordHasher
	clock  clock.Clock
	log    *zap.SugaredLogger
}

func NewUserService(users ports.UserRepository, hasher *security.PasswordHasher, clk clock.Clock, log *zap.SugaredLogger) ports.UserService {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &userService{users: users, hasher: hasher, clock: clk, log: log}
}

func (s *userService) Register(ctx context.Context, username, password string, role domain.Role, ip string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleGuest
	}
	if !selfServiceRoles[role] {
		return nil, fmt.Errorf("%w: %q cannot be chosen at registration", domain.ErrInvalidRole, role)
	}
	if err := validation.ValidateIP(ip); err != nil {
		return nil, err
	}
	ip = canonicalIP(ip)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CurrentIP:    ip,
		IPHistory:    []string{ip},
		CreatedAt:    s.clock.Now().UTC(),
		Version:      1,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infow("user registered", "username", username, "role", role, "ip", logger.MaskIP(ip))
	return user, nil
}

// Authenticate checks the password and records the login IP as currentIP.
// The IP history stays untouched; only the abuse ledger appends to it.
func (s *userService) Authenticate(ctx context.Context, username, password, ip string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Errorw("stored password hash unreadable", "username", user.Username, "error", err)
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if user.IsPermanentBan {
		return nil, domain.ErrPermanentlyBanned
	}

	ip = canonicalIP(ip)
	if ip != "" && ip != user.CurrentIP {
		err := onConflict(ctx, func() error {
			return s.users.UpdateCurrentIP(ctx, user.Username, ip)
		})
		if err != nil {
			return nil, fmt.Errorf("update current ip: %w", err)
		}
		user.CurrentIP = ip
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *userService) SetRole(ctx context.Context, actor, username string, role domain.Role) (*domain.User, error) {
	admin, err := s.users.GetByUsername(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if admin.Role != domain.RoleSysAdmin {
		return nil, fmt.Errorf("%w: only sysadmins may change roles", domain.ErrForbidden)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}

	err = onConflict(ctx, func() error {
		return s.users.UpdateRole(ctx, username, role)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("role changed", "actor", actor, "username", username, "role", role)
	return s.users.GetByUsername(ctx, username)
}
