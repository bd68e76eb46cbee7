package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/products/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, "/api/v1/admin/products/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin(1, "/api/v1/admin/products/42", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/token-requests", "GET"); err != nil {
		t.Fatalf("grant ops policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("finance", "/admin/products", "GET"); err != nil {
		t.Fatalf("grant finance policy failed: %v", err)
	}

	if err := svc.SetAdminRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:ops" {
		t.Fatalf("roles want [role:ops], got=%v", roles)
	}

	if err := svc.SetAdminRoles(2, []string{"finance"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, "/admin/token-requests", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin(2, "/admin/products", "GET")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/token-requests/:id", want: "/admin/token-requests/:id"},
		{in: "/admin/token-requests/:id", want: "/admin/token-requests/:id"},
		{in: "admin/token-requests", want: "/admin/token-requests"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap should be idempotent: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:readonly_auditor": true,
		"role:inventory":        true,
		"role:token_reviewer":   true,
		"role:ledger_admin":     true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles(3, []string{"inventory"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	cases := []struct {
		obj   string
		act   string
		allow bool
	}{
		{obj: "/api/v1/admin/token-requests", act: "GET", allow: true},
		{obj: "/api/v1/admin/products/7/movements", act: "POST", allow: true},
		{obj: "/api/v1/admin/products/7", act: "PUT", allow: true},
		{obj: "/api/v1/admin/token-requests/9/review", act: "POST", allow: false},
		{obj: "/api/v1/admin/users/4/tokens/adjust", act: "POST", allow: false},
	}
	for _, item := range cases {
		allow, err := svc.EnforceAdmin(3, item.obj, item.act)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", item.act, item.obj, err)
		}
		if allow != item.allow {
			t.Fatalf("enforce %s %s want=%v got=%v", item.act, item.obj, item.allow, allow)
		}
	}
}

func TestBootstrapAdminsGrantsLedgerAdmin(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(5, []string{"readonly_auditor"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}
	if err := svc.BootstrapAdmins([]uint{0, 5, 6}); err != nil {
		t.Fatalf("bootstrap admins failed: %v", err)
	}
	if err := svc.BootstrapAdmins([]uint{5}); err != nil {
		t.Fatalf("bootstrap admins again failed: %v", err)
	}

	roles, err := svc.GetAdminRoles(5)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 2 || roles[0] != "role:ledger_admin" || roles[1] != "role:readonly_auditor" {
		t.Fatalf("existing roles should be kept, got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(6, "/api/v1/admin/token-requests/1/review", "POST")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if !allow {
		t.Fatalf("ledger admin should review token requests")
	}
	allow, err = svc.EnforceAdmin(7, "/api/v1/admin/products", "GET")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if allow {
		t.Fatalf("admin without roles should be denied")
	}
}

func TestAdminPermissionsExpandsInheritance(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(9, []string{"token_reviewer"}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}

	policies, err := svc.AdminPermissions(9)
	if err != nil {
		t.Fatalf("admin permissions failed: %v", err)
	}
	want := map[string]bool{
		"GET /admin/*":                          false,
		"POST /admin/token-requests/:id/review": false,
		"POST /admin/users/:id/tokens/adjust":   false,
	}
	for _, p := range policies {
		key := p.Action + " " + p.Object
		if _, ok := want[key]; !ok {
			t.Fatalf("unexpected permission %s", key)
		}
		want[key] = true
	}
	for key, seen := range want {
		if !seen {
			t.Fatalf("missing permission %s", key)
		}
	}
}

func TestInheritRoleRejectsSelf(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.InheritRole("ops", "role:ops"); err == nil {
		t.Fatalf("self inheritance should fail")
	}
	if _, err := svc.EnsureRole(roleAnchor); err == nil {
		t.Fatalf("anchor role should be reserved")
	}
	var nilSvc *Service
	if _, err := nilSvc.Enforce("admin:1", "/admin/products", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil service should be unavailable, got %v", err)
	}
}
