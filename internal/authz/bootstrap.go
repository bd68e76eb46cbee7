package authz

import "fmt"

// RoleLedgerAdmin 拥有全部后台账本权限的角色
const RoleLedgerAdmin = "ledger_admin"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     "inventory",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/products", Action: "POST"},
				{Object: "/admin/products/:id", Action: "PUT"},
				{Object: "/admin/products/:id/movements", Action: "POST"},
			},
		},
		{
			Role:     "token_reviewer",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/token-requests/:id/review", Action: "POST"},
				{Object: "/admin/users/:id/tokens/adjust", Action: "POST"},
			},
		},
		{
			Role:     RoleLedgerAdmin,
			Inherits: []string{"inventory", "token_reviewer"},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略（重复执行无副作用）
func (s *Service) BootstrapBuiltinRoles() error {
	if _, err := s.e(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		if _, err := s.EnsureRole(seed.Role); err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			if err := s.InheritRole(seed.Role, parent); err != nil {
				return err
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(seed.Role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}

// BootstrapAdmins 为配置中的管理员补齐 ledger_admin 角色（保留已有角色）
func (s *Service) BootstrapAdmins(adminIDs []uint) error {
	for _, adminID := range adminIDs {
		if adminID == 0 {
			continue
		}
		roles, err := s.GetAdminRoles(adminID)
		if err != nil {
			return err
		}
		target, err := NormalizeRole(RoleLedgerAdmin)
		if err != nil {
			return err
		}
		hasRole := false
		for _, role := range roles {
			if role == target {
				hasRole = true
				break
			}
		}
		if hasRole {
			continue
		}
		if err := s.SetAdminRoles(adminID, append(roles, RoleLedgerAdmin)); err != nil {
			return err
		}
	}
	return nil
}
