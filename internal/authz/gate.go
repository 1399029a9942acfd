package authz

// Decision is the outcome of an access-gate predicate. Reason carries
// the specific denial message shown to the user; it is empty when the
// action is allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanEditName gates editing any profile's display name. Master only,
// by identity, not merely admin privilege.
func CanEditName(actor Resolution) Decision {
	if actor.Master {
		return allow()
	}
	return deny("only the master administrator can edit user names")
}

// CanEditDepartmentField gates editing one profile's department.
func CanEditDepartmentField(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to edit departments")
}

// CanEditVehicle gates editing one profile's primary vehicle number.
func CanEditVehicle(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to edit vehicle numbers")
}

// CanOpenRoleEditor gates opening the role editor at all.
func CanOpenRoleEditor(actor Resolution) Decision {
	if actor.Master {
		return allow()
	}
	return deny("only the master administrator can change roles")
}

// CanEditRole gates changing a target's role to newRole. The editor is
// master-only; within it, a master_admin target and granting the
// master_admin role each independently require a master actor.
func CanEditRole(actor Resolution, target Role, newRole Role) Decision {
	if d := CanOpenRoleEditor(actor); !d.Allowed {
		return d
	}
	if target == RoleMasterAdmin && !actor.Master {
		return deny("a master administrator can only be edited by another master administrator")
	}
	if newRole == RoleMasterAdmin && !actor.Master {
		return deny("only a master administrator can grant the master administrator role")
	}
	return allow()
}

// CanPromote gates the one-click pending_admin -> admin promotion.
// Admin privilege from either source suffices; master is not required.
func CanPromote(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to approve admin requests")
}

// CanDeleteDriver gates deleting a target profile. The asymmetry is
// deliberate: an admin can delete users and pending admins but not
// fellow admins, and only a master can delete admins or masters.
func CanDeleteDriver(actor Resolution, target Role) Decision {
	switch target {
	case RoleMasterAdmin:
		if !actor.Master {
			return deny("a master administrator can only be deleted by another master administrator")
		}
	case RoleAdmin:
		if !actor.Master {
			return deny("only the master administrator can delete another administrator")
		}
	default:
		if !actor.AdminPrivilege {
			return deny("administrator privileges are required to delete users")
		}
	}
	return allow()
}

// CanRenameDepartment gates the bulk department rename.
func CanRenameDepartment(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to rename departments")
}

// CanDeleteDepartment gates the bulk department clear. Master only.
func CanDeleteDepartment(actor Resolution) Decision {
	if actor.Master {
		return allow()
	}
	return deny("only the master administrator can delete departments")
}

// CanEditTrip gates editing a driving record.
func CanEditTrip(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to edit driving records")
}

// CanDeleteTrip gates deleting a driving record.
func CanDeleteTrip(actor Resolution) Decision {
	if actor.AdminPrivilege {
		return allow()
	}
	return deny("administrator privileges are required to delete driving records")
}
