package domain

// Filter fields understood by record repositories.
const (
	ScopeFieldOwner      = "owner"
	ScopeFieldDepartment = "department"
)

// Scope restricts a record listing. The zero value matches nothing; use
// ScopeFor to build one.
type Scope struct {
	Unrestricted bool
	Field        string
	Value        string
}

// ScopeFor maps an identity to the records it may list. Roles without an
// entry are denied with ErrForbidden, as is a manager with no department.
func ScopeFor(id Identity) (Scope, error) {
	switch id.Role {
	case RoleAdmin:
		return Scope{Unrestricted: true}, nil
	case RoleSalesRep:
		if id.SubjectID == "" {
			return Scope{}, ErrForbidden
		}
		return Scope{Field: ScopeFieldOwner, Value: id.SubjectID}, nil
	case RoleManager:
		if id.Department == "" {
			return Scope{}, ErrForbidden
		}
		return Scope{Field: ScopeFieldDepartment, Value: id.Department}, nil
	default:
		return Scope{}, ErrForbidden
	}
}

// Allows reports whether a record with the given owner and department is
// inside the scope.
func (s Scope) Allows(owner, department string) bool {
	if s.Unrestricted {
		return true
	}
	switch s.Field {
	case ScopeFieldOwner:
		return owner == s.Value
	case ScopeFieldDepartment:
		return department == s.Value
	}
	return false
}
