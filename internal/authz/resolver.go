package authz

// Resolution is the outcome of resolving a principal's effective role
// from its two sources: the driver profile's role column and the
// identity account's metadata role. The two can diverge after a
// partial role update; privilege is granted if either source grants
// it, while Role (the label shown and compared for most decisions)
// prefers the profile.
type Resolution struct {
	// Role is the effective role: profile role when a profile exists,
	// metadata role otherwise, user when neither source is set.
	Role Role

	// ProfileRole and MetadataRole are the raw source values, empty
	// when the source is absent.
	ProfileRole  Role
	MetadataRole Role

	// AdminPrivilege is true when either source is admin or master_admin.
	AdminPrivilege bool

	// Master is true when the principal is a master administrator by
	// break-glass email or by either role source.
	Master bool

	// Pending marks a principal whose admin request awaits approval.
	Pending bool
}

// Resolver computes effective roles. MasterEmail is the break-glass
// account that is always master_admin regardless of stored roles.
type Resolver struct {
	MasterEmail string
}

// Resolve determines the effective role for a principal. email and
// metadataRole come from the session; profileRole comes from the
// linked driver profile and is empty when no profile exists (a lookup
// miss is "no privilege from that source", never an error).
func (rv Resolver) Resolve(email, metadataRole, profileRole string) Resolution {
	// Break-glass account short-circuits every other check, including
	// contradictory stored roles.
	if rv.MasterEmail != "" && email == rv.MasterEmail {
		return Resolution{
			Role:           RoleMasterAdmin,
			ProfileRole:    Role(profileRole),
			MetadataRole:   Role(metadataRole),
			AdminPrivilege: true,
			Master:         true,
		}
	}

	pr, ok := ParseRole(profileRole)
	if !ok {
		pr = ""
	}
	mr, ok := ParseRole(metadataRole)
	if !ok {
		mr = ""
	}

	res := Resolution{
		ProfileRole:    pr,
		MetadataRole:   mr,
		AdminPrivilege: pr.HasAdminPrivilege() || mr.HasAdminPrivilege(),
		Master:         pr == RoleMasterAdmin || mr == RoleMasterAdmin,
	}

	switch {
	case pr != "":
		res.Role = pr
	case mr != "":
		res.Role = mr
	default:
		res.Role = RoleUser
	}

	res.Pending = pr == RolePendingAdmin && !res.AdminPrivilege

	return res
}
