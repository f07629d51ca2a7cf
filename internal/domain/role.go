package domain

// Role is a kanban authorization role derived from ERP permissions
type Role string

const (
	RoleSupplyOperator Role = "supply_operator"
	RoleWarehouse      Role = "warehouse"
	RoleObjectTasks    Role = "object_tasks"
	RoleKanbanAdmin    Role = "kanban_admin"
	RoleDirector       Role = "director"
	RoleAdmin          Role = "admin"
)

// AllRoles is granted to trusted service callers
var AllRoles = []Role{
	RoleSupplyOperator,
	RoleWarehouse,
	RoleObjectTasks,
	RoleKanbanAdmin,
	RoleDirector,
	RoleAdmin,
}

// CardWriteRoles returns the roles allowed to write cards of a type, the same
// roles that guard the type's overlay endpoints. Generic cards return nil:
// any authenticated caller may write them.
func CardWriteRoles(t CardType) []Role {
	switch t {
	case CardTypeSupplyCase:
		return []Role{RoleSupplyOperator}
	case CardTypeCommercialCase:
		return []Role{RoleSupplyOperator, RoleDirector}
	case CardTypeObjectTask:
		return []Role{RoleObjectTasks}
	case CardTypeWarehouseLine:
		return []Role{RoleWarehouse}
	}
	return nil
}
