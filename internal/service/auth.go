package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"idea-board/internal/domain"
	"idea-board/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxEmailLen    = 191
)

// Claims 是签发给客户端的 JWT 载荷。
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService 负责注册、登录以及 token 解析。
type AuthService struct {
	userRepo  repository.UserRepository
	denylist  repository.TokenDenylist // 可选，为 nil 时注销只在客户端生效
	jwtSecret []byte
	jwtExpiry time.Duration
	now       func() time.Time
}

// NewAuthService 创建 AuthService 实例。
// jwtExpiryHours <= 0 时使用默认的 24 小时。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
		now:       time.Now,
	}, nil
}

// WithDenylist 启用基于 jti 的 token 注销。
func (s *AuthService) WithDenylist(denylist repository.TokenDenylist) *AuthService {
	s.denylist = denylist
	return s
}

// Register 处理用户注册，返回的用户对象不包含密码哈希。
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "email": email})

	if err := validateRegistration(username, email, password); err != nil {
		logCtx.WithError(err).Warn("Registration rejected: invalid input")
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		logCtx.Warn("Registration failed: email already in use")
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		logCtx.WithError(err).Error("Database error checking email during registration")
		return nil, ErrInternalServer
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: email already in use (unique index)")
			return nil, ErrEmailTaken
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	user.Password = ""
	return user, nil
}

// Authenticate 校验凭据并签发 token。
// 邮箱不存在和密码错误返回同一个 ErrInvalidCredentials。
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil || user == nil {
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Error("Login attempt failed: error finding user")
			return "", nil, ErrInternalServer
		}
		// 即使用户不存在也做一次哈希比较，避免通过耗时区分
		_ = checkPassword(password, dummyHash())
		logCtx.Warn("Login attempt failed: user not found")
		return "", nil, ErrInvalidCredentials
	}

	if !checkPassword(password, user.Password) {
		logCtx.WithField("user_id", user.ID).Warn("Login attempt failed: invalid password")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	user.Password = ""
	return token, user, nil
}

// Resolve 校验 token 并重新加载用户，账户不存在时视为未认证。
func (s *AuthService) Resolve(ctx context.Context, tokenStr string) (*domain.Identity, error) {
	claims, err := s.parseToken(tokenStr)
	if err != nil {
		logrus.WithError(err).Debug("Token rejected")
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	logCtx := logrus.WithField("user_id", claims.UserID)

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to check token revocation")
			return nil, ErrInternalServer
		}
		if revoked {
			logCtx.Debug("Token rejected: revoked")
			return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
		}
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Token rejected: user no longer exists")
			return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
		}
		logCtx.WithError(err).Error("Failed to load user for token")
		return nil, ErrInternalServer
	}

	return &domain.Identity{UserID: user.ID, Username: user.Username, Email: user.Email}, nil
}

// Logout 注销 token。未配置 denylist 时只由客户端丢弃 token。
func (s *AuthService) Logout(ctx context.Context, tokenStr string) error {
	claims, err := s.parseToken(tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if s.denylist == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		logrus.WithError(err).WithField("user_id", claims.UserID).Error("Failed to revoke token")
		return ErrInternalServer
	}
	logrus.WithField("user_id", claims.UserID).Info("User logged out, token revoked")
	return nil
}

// --- 私有辅助函数 ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(username, email, password string) error {
	if n := len([]rune(username)); n < minUsernameLen || n > maxUsernameLen {
		return validationError("username must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return validationError("email is not valid")
	}
	if len([]rune(email)) > maxEmailLen {
		return validationError("email must be at most %d characters", maxEmailLen)
	}
	if len(password) < minPasswordLen {
		return validationError("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

func dummyHash() string {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
		if err == nil {
			dummyHashValue = string(h)
		}
	})
	return dummyHashValue
}

// generateJWT 为用户签发 HS256 token
func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// parseToken 校验签名算法、签名和过期时间
func (s *AuthService) parseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token or claims")
	}
	return claims, nil
}
