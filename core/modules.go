package core

// Module names a functional area of the ERP. Permissions and audit entries are scoped by Module.
type Module string

const (
	ModuleInstitution Module = "institution"
	ModuleAcademic    Module = "academic"
	ModulePeople      Module = "people"
	ModuleEnrollment  Module = "enrollment"
	ModuleTuition     Module = "tuition"
	ModuleCashier     Module = "cashier"
	ModuleVendor      Module = "vendor"
	ModuleInventory   Module = "inventory"
	ModuleSales       Module = "sales"
	ModuleGrading     Module = "grading"
	ModuleUsers       Module = "users"
	ModuleAudit       Module = "audit"
	ModuleReports     Module = "reports"
)

var AllModules = []Module{
	ModuleInstitution, ModuleAcademic, ModulePeople, ModuleEnrollment, ModuleTuition, ModuleCashier,
	ModuleVendor, ModuleInventory, ModuleSales, ModuleGrading, ModuleUsers, ModuleAudit, ModuleReports,
}

func (m Module) Valid() bool {
	for _, mod := range AllModules {
		if m == mod {
			return true
		}
	}
	return false
}
