package auth

// Module keys known to the application.
const (
	ModuleAssets      = "assets"
	ModuleLicenses    = "licenses"
	ModuleRepairs     = "repairs"
	ModuleEmployees   = "employees"
	ModuleFingerprint = "fingerprint"
	ModuleAudit       = "audit"
	ModulePermissions = "permissions"
	ModuleAuth        = "auth"
)

// BuiltinModules is the catalog seeded on first start.
var BuiltinModules = []Module{
	{Key: ModuleAssets, Name: "Assets", IsActive: true, Actions: ActionSet{"read", "create", "update", "delete", "assign"}},
	{Key: ModuleLicenses, Name: "Software licenses", IsActive: true, Actions: ActionSet{"read", "create", "update", "delete", "assign"}},
	{Key: ModuleRepairs, Name: "Repairs", IsActive: true, Actions: ActionSet{"read", "create", "update", "delete"}},
	{Key: ModuleEmployees, Name: "Employees", IsActive: true, Actions: ActionSet{"read", "create", "update", "delete"}},
	{Key: ModuleFingerprint, Name: "Fingerprint enrollment", IsActive: true, Actions: ActionSet{"read", "create", "update", "print"}},
	{Key: ModuleAudit, Name: "Audit log", IsActive: true, Actions: ActionSet{"read"}},
	{Key: ModulePermissions, Name: "Permissions", IsActive: true, Actions: ActionSet{"read"}},
}
