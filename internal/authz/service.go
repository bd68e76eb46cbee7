package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
	// roleAnchor 让空角色也能在 g 规则中留痕，ListRoles 依赖它枚举角色
	roleAnchor = "role:__anchor__"
)

// ledgerRBACModel 管理员 -> 角色 -> (路由模板, 方法)
const ledgerRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// ErrUnavailable 授权服务未初始化
var ErrUnavailable = errors.New("authz service unavailable")

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service 后台账本接口的 RBAC 判定，策略持久化在 casbin_rule 表
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(ledgerRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) e() (*casbin.SyncedEnforcer, error) {
	if s == nil || s.enforcer == nil {
		return nil, ErrUnavailable
	}
	return s.enforcer, nil
}

// Enforce 判定主体能否以 act 访问 obj（obj 可带 /api/v1 前缀）
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	e, err := s.e()
	if err != nil {
		return false, err
	}
	return e.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceAdmin 按管理员 ID 判定
func (s *Service) EnforceAdmin(adminID uint, obj, act string) (bool, error) {
	return s.Enforce(SubjectForAdmin(adminID), obj, act)
}

// EnsureRole 确保角色存在并返回规范化名称
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", errors.New("reserved role is not allowed")
	}
	e, err := s.e()
	if err != nil {
		return "", err
	}
	// AddNamedGroupingPolicy 对已存在的规则返回 false，不报错
	if _, err := e.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role failed: %w", err)
	}
	return normalized, nil
}

// InheritRole 让 role 继承 parent 的全部策略
func (s *Service) InheritRole(role, parent string) error {
	child, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	base, err := s.EnsureRole(parent)
	if err != nil {
		return err
	}
	if child == base {
		return errors.New("role cannot inherit itself")
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", child, base); err != nil {
		return fmt.Errorf("link role inheritance failed: %w", err)
	}
	return nil
}

// ListRoles 列出全部角色（已排序）
func (s *Service) ListRoles() ([]string, error) {
	e, err := s.e()
	if err != nil {
		return nil, err
	}
	anchored, err := e.GetFilteredNamedGroupingPolicy("g", 1, roleAnchor)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	roles := make([]string, 0, len(anchored))
	for _, rule := range anchored {
		roles = append(roles, rule[0])
	}
	sort.Strings(roles)
	return roles, nil
}

// GrantRolePolicy 为角色授予 (路由模板, 方法) 权限
func (s *Service) GrantRolePolicy(role, object, action string) error {
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	act := NormalizeAction(action)
	if act == "" {
		return errors.New("action is required")
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, NormalizeObject(object), act); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// SetAdminRoles 覆盖管理员的角色集合
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return errors.New("admin id is required")
	}
	e, err := s.e()
	if err != nil {
		return err
	}
	subject := SubjectForAdmin(adminID)
	if _, err := e.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear admin roles failed: %w", err)
	}
	for _, role := range roles {
		normalized, err := s.EnsureRole(role)
		if err != nil {
			return err
		}
		if _, err := e.AddNamedGroupingPolicy("g", subject, normalized); err != nil {
			return fmt.Errorf("assign admin role failed: %w", err)
		}
	}
	return nil
}

// GetAdminRoles 管理员直接拥有的角色（不展开继承）
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, errors.New("admin id is required")
	}
	e, err := s.e()
	if err != nil {
		return nil, err
	}
	roles, err := e.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) && role != roleAnchor {
			out = append(out, role)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AdminPermissions 管理员经角色继承展开后的全部策略
func (s *Service) AdminPermissions(adminID uint) ([]Policy, error) {
	if adminID == 0 {
		return nil, errors.New("admin id is required")
	}
	e, err := s.e()
	if err != nil {
		return nil, err
	}
	rows, err := e.GetImplicitPermissionsForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin permissions failed: %w", err)
	}
	seen := make(map[string]struct{}, len(rows))
	policies := make([]Policy, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		key := row[1] + " " + row[2]
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		policies = append(policies, Policy{Subject: row[0], Object: row[1], Action: row[2]})
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Object == policies[j].Object {
			return policies[i].Action < policies[j].Action
		}
		return policies[i].Object < policies[j].Object
	})
	return policies, nil
}

// SubjectForAdmin 管理员主体标识 admin:<id>
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf("admin:%d", adminID)
}

// NormalizeRole 补齐 role: 前缀，空格替换为下划线
func NormalizeRole(role string) (string, error) {
	name := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	name = strings.TrimPrefix(name, rolePrefix)
	if name == "" {
		return "", errors.New("role is required")
	}
	return rolePrefix + name, nil
}

// NormalizeObject 去掉 /api/v1 前缀，保证以 / 开头
func NormalizeObject(object string) string {
	path := strings.TrimSpace(object)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(path, apiV1Prefix+"/") {
		return path[len(apiV1Prefix):]
	}
	return path
}

// NormalizeAction HTTP 方法统一大写
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
