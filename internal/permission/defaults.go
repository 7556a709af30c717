package permission

import "sort"

// System role names.
const (
	RoleSuperAdmin          = "super_admin"
	RoleCompanyAdmin        = "company_admin"
	RoleLabelAdmin          = "label_admin"
	RoleDistributionPartner = "distribution_partner"
	RoleArtist              = "artist"
	RoleFinancialAdmin      = "financial_admin"
	RoleSupportAdmin        = "support_admin"
	RoleContentModerator    = "content_moderator"
)

// Permissions the admin API itself is gated on.
const (
	RoleRead       = "role:read:any"
	RoleManage     = "role:manage:any"
	UserRead       = "user:read:any"
	UserUpdate     = "user:update:any"
	SplitRead      = "split:read:any"
	SplitUpdate    = "split:update:any"
	EarningsRead   = "earnings:read:any"
	EarningsCreate = "earnings:create:any"
	AuditRead      = "audit:read:any"
	EventsRead     = "events:read:any"
)

// SystemRole describes a built-in role.
type SystemRole struct {
	Name        string
	Description string
}

var systemRoles = []SystemRole{
	{RoleSuperAdmin, "Full platform access"},
	{RoleCompanyAdmin, "Company-wide management of users, releases, earnings and labels"},
	{RoleLabelAdmin, "Manages a label roster, its releases and its splits"},
	{RoleDistributionPartner, "Reviews and distributes releases for a partner"},
	{RoleArtist, "Manages own releases, earnings and payouts"},
	{RoleFinancialAdmin, "Manages earnings, payouts and split approvals"},
	{RoleSupportAdmin, "Handles support tickets and user communication"},
	{RoleContentModerator, "Reviews and moderates content"},
}

var defaults = map[string][]string{
	RoleSuperAdmin: {All},

	RoleCompanyAdmin: {
		"user:read:any", "user:create:any", "user:update:any", "user:delete:any",
		"user:approve_changes:any", "user:reject_changes:any",

		"release:read:any", "release:create:partner", "release:update:any",
		"release:delete:any", "release:approve:any", "release:distribute:any",

		"analytics:read:any", "analytics:export:any",
		"earnings:read:any", "earnings:export:any", "earnings:calculate:any",

		"payout:read:any", "payout:approve:any", "payout:process:any", "payout:cancel:any",

		"label:read:any", "label:create:any", "label:update:any",
		"roster:read:any", "roster:manage:any", "affiliation:approve:any",

		"split:read:any", "split:approve:any",

		"support:read:any", "support:respond:any", "support:assign:any",
		"support:escalate:any", "support:close:any",

		"role:read:any",
		"audit:read:any",

		"subscription:read:any", "subscription:manage:any", "subscription:billing:any",

		"message:send:any", "notification:send:any", "announcement:create:any",
	},

	RoleLabelAdmin: {
		"user:read:label", "user:create:label", "user:update:label",
		"user:read:own", "user:update:own",

		"release:read:label", "release:create:label", "release:update:label", "release:delete:label",
		"release:read:own", "release:create:own", "release:update:own",

		"analytics:read:label", "analytics:export:label", "analytics:read:own",
		"earnings:read:label", "earnings:export:label", "earnings:read:own", "earnings:export:own",

		"payout:read:label", "payout:approve:label", "payout:read:own", "payout:create:own",

		"label:read:own", "label:update:own", "roster:read:own", "roster:manage:own",

		"split:read:label", "split:create:label", "split:update:label", "split:delete:label",
		"split:read:own", "split:create:own", "split:update:own",

		"support:read:label", "support:read:own", "support:create:own", "support:respond:own",

		"subscription:read:label", "subscription:read:own",

		"message:send:label", "notification:send:label", "message:read:own", "notification:read:own",
	},

	RoleDistributionPartner: {
		"distribution:read:partner", "distribution:manage:partner", "distribution:approve:partner",

		"release:read:partner", "release:create:partner", "release:update:partner", "release:approve:partner",

		"analytics:read:partner", "analytics:export:partner",
		"earnings:read:partner", "earnings:export:partner",

		"payout:read:partner", "payout:approve:partner",

		"user:read:partner", "user:create:partner", "user:update:partner",

		"user:read:own", "user:update:own", "subscription:read:own",
		"notification:read:own", "message:read:own",
	},

	// Self-service core only; exports, split edits and ticket management are
	// granted per artist.
	RoleArtist: {
		"user:read:own", "user:update:own",
		"release:read:own", "release:create:own", "release:update:own", "release:delete:own",
		"analytics:read:own", "earnings:read:own",
		"payout:read:own", "payout:create:own",
		"split:read:own",
		"support:create:own",
		"subscription:read:own",
	},

	RoleFinancialAdmin: {
		"earnings:read:any", "earnings:create:any", "earnings:update:any",
		"earnings:export:any", "earnings:calculate:any",

		"payout:read:any", "payout:create:any", "payout:approve:any",
		"payout:process:any", "payout:cancel:any",

		"split:read:any", "split:approve:any",

		"analytics:read:any", "analytics:export:any",

		"user:read:any",

		"message:read:own", "notification:read:own", "notification:send:any",
	},

	RoleSupportAdmin: {
		"support:read:any", "support:create:any", "support:respond:any", "support:update:any",
		"support:assign:any", "support:escalate:any", "support:close:any",

		"user:read:any",

		"message:send:any", "message:read:any", "notification:send:any", "notification:read:any",

		"user:read:own", "user:update:own",
	},

	RoleContentModerator: {
		"content:read:any", "content:moderate:any", "content:flag:any",
		"content:approve:any", "content:reject:any",

		"release:read:any", "release:moderate:any",

		"user:read:any",

		"message:read:own", "notification:read:own", "notification:send:any",
	},
}

var management = []string{
	RoleRead, RoleManage,
	UserRead, UserUpdate,
	SplitRead, SplitUpdate,
	EarningsRead, EarningsCreate,
	AuditRead,
	EventsRead,
}

// Defaults returns the canonical permission names for a system role. The
// returned slice is a copy.
func Defaults(roleName string) ([]string, bool) {
	names, ok := defaults[roleName]
	if !ok {
		return nil, false
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, true
}

// SystemRoles lists the built-in roles in display order.
func SystemRoles() []SystemRole {
	out := make([]SystemRole, len(systemRoles))
	copy(out, systemRoles)
	return out
}

func IsSystemRole(name string) bool {
	_, ok := defaults[name]
	return ok
}

// Catalog is every permission name the platform knows about, sorted.
func Catalog() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, names := range defaults {
		for _, n := range names {
			add(n)
		}
	}
	for _, n := range management {
		add(n)
	}
	sort.Strings(out)
	return out
}

// Describe renders a human readable label for a permission name.
func Describe(name string) string {
	t, err := Parse(name)
	if err != nil {
		return name
	}
	if t.IsAll() {
		return "All permissions"
	}
	return verb(t.Action.String()) + " " + t.Resource.String() + " (" + t.Scope.String() + ")"
}

func verb(action string) string {
	if action == Wildcard {
		return "Any action on"
	}
	b := []byte(action)
	for i := range b {
		if b[i] == '_' {
			b[i] = ' '
		}
	}
	if len(b) > 0 && b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
