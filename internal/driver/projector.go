package driver

import (
	"sort"
	"strings"

	"github.com/Moosv/simplefleet/internal/authz"
)

// BuildRoster derives the aggregate roster view from driver rows.
// Departments are a projection over the rows, not stored entities:
// a department exists exactly while at least one driver names it.
func BuildRoster(drivers []Driver) Roster {
	roster := Roster{Total: len(drivers)}

	byDepartment := make(map[string]int)
	for _, d := range drivers {
		switch d.Role {
		case authz.RoleUser:
			roster.Counts.Users++
		case authz.RolePendingAdmin:
			roster.Counts.PendingAdmins++
		case authz.RoleAdmin:
			roster.Counts.Admins++
		case authz.RoleMasterAdmin:
			roster.Counts.MasterAdmins++
		}

		name := ""
		if d.Department != nil {
			name = strings.TrimSpace(*d.Department)
		}
		if name == "" {
			roster.Unassigned++
			continue
		}
		byDepartment[name]++
	}

	for name, count := range byDepartment {
		roster.Departments = append(roster.Departments, DepartmentSummary{
			Name:        name,
			DriverCount: count,
		})
	}
	sort.Slice(roster.Departments, func(i, j int) bool {
		return roster.Departments[i].Name < roster.Departments[j].Name
	})

	return roster
}
