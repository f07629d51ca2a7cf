package auth

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stroyteh/kanban-service/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the payload of a kanban access token
type Claims struct {
	Username       string                 `json:"username"`
	Roles          []string               `json:"roles"`
	ErpPermissions map[string]interface{} `json:"erp_permissions"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens signed with SECRET_KEY
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for an ERP user. Roles are derived from the ERP
// permissions and flags with RolesFromERPPermissions.
func (m *TokenManager) Issue(req *domain.IssueTokenRequest) (string, []domain.Role, error) {
	if len(m.secret) == 0 {
		return "", nil, errors.New("token signing key is not configured")
	}
	roles := RolesFromERPPermissions(req.ErpPermissions, req.IsDirector, req.IsAdmin || req.IsSuperuser)
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	perms := req.ErpPermissions
	if perms == nil {
		perms = map[string]interface{}{}
	}

	now := m.now()
	claims := Claims{
		Username:       req.Username,
		Roles:          names,
		ErpPermissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(req.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, roles, nil
}

// Validate verifies a token and returns the caller it describes
func (m *TokenManager) Validate(tokenString string) (*UserContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, domain.Role(r))
	}
	return &UserContext{
		UserID:         &userID,
		Username:       claims.Username,
		Roles:          roles,
		ErpPermissions: claims.ErpPermissions,
	}, nil
}

// permission levels of an ERP module that grant a kanban role
var permissionRoles = []struct {
	module string
	levels []string
	role   domain.Role
}{
	{"supply", []string{"edit", "admin"}, domain.RoleSupplyOperator},
	{"warehouse", []string{"edit", "admin"}, domain.RoleWarehouse},
	{"object_tasks", []string{"read", "edit", "admin"}, domain.RoleObjectTasks},
	{"kanban", []string{"admin"}, domain.RoleKanbanAdmin},
}

// RolesFromERPPermissions maps ERP module permissions to kanban roles.
// The result is sorted and free of duplicates.
func RolesFromERPPermissions(perms map[string]interface{}, isDirector, isAdmin bool) []domain.Role {
	set := map[domain.Role]bool{}
	for _, p := range permissionRoles {
		level, _ := perms[p.module].(string)
		for _, l := range p.levels {
			if level == l {
				set[p.role] = true
			}
		}
	}
	if isDirector {
		set[domain.RoleDirector] = true
	}
	if isAdmin {
		set[domain.RoleAdmin] = true
	}

	roles := make([]domain.Role, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
