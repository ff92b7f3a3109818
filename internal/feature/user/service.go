package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"soil-monitor/internal/domain"
)

// Hasher 密码单向哈希（实现见 pkg/utils.BcryptHasher）
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type Service struct {
	users  domain.UserRepository
	hasher Hasher
}

func NewService(users domain.UserRepository, hasher Hasher) *Service {
	return &Service{users: users, hasher: hasher}
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register 创建账号，返回新用户 ID；邮箱已存在时返回 domain.ErrDuplicateKey
func (s *Service) Register(ctx context.Context, name, email, secret string) (uint, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || secret == "" {
		return 0, fmt.Errorf("%w: name, email and secret are required", domain.ErrValidation)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	u := &domain.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Login 校验邮箱与密码：账号不存在 → ErrNotFound，密码错误 → ErrUnauthorized
func (s *Service) Login(ctx context.Context, email, secret string) (*domain.User, error) {
	u, err := s.users.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(secret, u.PasswordHash) {
		return nil, fmt.Errorf("%w: wrong secret", domain.ErrUnauthorized)
	}
	return u, nil
}

// Exists reports whether an account with id is registered.
func (s *Service) Exists(ctx context.Context, id uint) (bool, error) {
	_, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
