package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/pkg/response"
)

const (
	ContextTenantID = "tenant_id"
	ContextRole     = "role"

	RoleTenant = "tenant"
	RoleAdmin  = "admin"

	HeaderAPIKey = "X-API-Key"
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidToken       = errors.New("invalid token")
	errInvalidAPIKey      = errors.New("invalid api key")

	errTenantInactive = apperr.New(apperr.KindForbidden, "tenant_inactive", "tenant is not active")
	errForbidden      = apperr.New(apperr.KindForbidden, "forbidden", "insufficient role")
	errTenantRequired = apperr.New(apperr.KindForbidden, "tenant_required", "token is not bound to a tenant")
)

// TenantSource 租户读取（通常是 tenantcache.Cache）
type TenantSource interface {
	Get(ctx context.Context, id int64) (*model.Tenant, error)
}

// Auditor 认证失败写审计
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Claims JWT 载荷
type Claims struct {
	TenantID int64  `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 签发 HS256 token，admin token 可不绑定租户
func IssueToken(secret string, tenantID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(tenantID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// HashAPISecret 生成 API key 的 bcrypt 哈希
func HashAPISecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(b), err
}

// Auth 支持 Bearer JWT 与 X-API-Key（<tenant_id>.<secret>）两种凭证
func Auth(secret string, tenants TenantSource, auditor Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(c, secret, tenants)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				response.Error(c, err)
				return
			}
			auditor.Record(c.Request.Context(), audit.Entry{
				Event:    audit.EventAuthFailed,
				Severity: model.SeveritySecurity,
				Actor:    c.ClientIP(),
				Subject:  c.FullPath(),
				Outcome:  err.Error(),
			})
			response.Unauthorized(c, err.Error())
			return
		}
		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

func authenticate(c *gin.Context, secret string, tenants TenantSource) (*Claims, error) {
	if key := strings.TrimSpace(c.GetHeader(HeaderAPIKey)); key != "" {
		return apiKey(c.Request.Context(), key, tenants)
	}

	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingCredentials
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	switch claims.Role {
	case RoleTenant:
		if claims.TenantID <= 0 {
			return nil, errInvalidToken
		}
	case RoleAdmin:
		if claims.TenantID == 0 {
			return claims, nil
		}
	default:
		return nil, errInvalidToken
	}

	t, err := tenants.Get(c.Request.Context(), claims.TenantID)
	if err != nil {
		return nil, errInvalidToken
	}
	if !t.Active {
		return nil, errTenantInactive
	}
	return claims, nil
}

func apiKey(ctx context.Context, key string, tenants TenantSource) (*Claims, error) {
	idPart, secret, ok := strings.Cut(key, ".")
	if !ok || secret == "" {
		return nil, errInvalidAPIKey
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidAPIKey
	}
	t, err := tenants.Get(ctx, id)
	if err != nil || t.APIKeyHash == "" {
		return nil, errInvalidAPIKey
	}
	if bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(secret)) != nil {
		return nil, errInvalidAPIKey
	}
	if !t.Active {
		return nil, errTenantInactive
	}
	return &Claims{TenantID: id, Role: RoleTenant}, nil
}

// RequireRole 角色校验
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Error(c, errForbidden)
	}
}

// RequireTenant 租户接口要求 token 绑定租户
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TenantID(c) <= 0 {
			response.Error(c, errTenantRequired)
			return
		}
		c.Next()
	}
}

// TenantID 当前请求的租户
func TenantID(c *gin.Context) int64 {
	return c.GetInt64(ContextTenantID)
}
