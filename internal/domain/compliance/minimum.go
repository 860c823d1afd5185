package compliance

// Pre-declared field allow-lists per role. An actor may only request the
// fields its role needs for its declared function; anything outside the list
// fails the minimum-necessary check outright.
var roleFieldAllowlist = map[string][]string{
	"patient": {
		"id", "name", "email", "phone", "dateOfBirth",
		"appointmentDate", "appointmentStatus", "clinicianName",
	},
	"clinician": {
		"id", "name", "dateOfBirth", "medicalHistory", "medications",
		"allergies", "appointmentDate", "appointmentStatus", "notes",
	},
	"scheduler": {
		"id", "name", "phone", "email",
		"appointmentDate", "appointmentStatus", "clinicianName",
	},
	"billing": {
		"id", "name", "email", "appointmentDate", "insuranceProvider", "invoiceStatus",
	},
	"admin": {
		"id", "name", "email", "accountStatus", "roleName", "lastLoginAt",
	},
}

// ValidateMinimumNecessary reports whether every requested field sits inside
// the role's pre-declared allow-list. Unknown roles have no allow-list and
// therefore fail for any non-empty request.
func ValidateMinimumNecessary(role string, requestedFields []string) bool {
	allowed, ok := roleFieldAllowlist[role]
	if !ok {
		return len(requestedFields) == 0
	}
	set := make(map[string]struct{}, len(allowed))
	for _, field := range allowed {
		set[field] = struct{}{}
	}
	for _, field := range requestedFields {
		if _, ok := set[field]; !ok {
			return false
		}
	}
	return true
}
