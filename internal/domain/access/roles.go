package access

type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpExport Operation = "export"
	OpAudit  Operation = "audit"
)

// Wildcard matches any resource name. Exact patterns always win over it.
const Wildcard = "*"

const AdminRole = "admin"

// TimeWindow restricts access to an inclusive hour-of-day range. A window
// with StartHour > EndHour wraps past midnight (e.g. 22..6 for night staff).
type TimeWindow struct {
	StartHour int
	EndHour   int
}

func (w TimeWindow) Contains(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour <= w.EndHour
	}
	return hour >= w.StartHour || hour <= w.EndHour
}

// Conditions are evaluated in declaration order: ownDataOnly, then purpose
// limitation, then time restriction. The first violated condition denies.
type Conditions struct {
	OwnDataOnly     bool
	AllowedPurposes []string
	TimeWindow      *TimeWindow
}

type Permission struct {
	Resource   string
	Operation  Operation
	Conditions *Conditions
}

// Role is an immutable policy bundle. Roles are registered at construction
// and only ever read afterwards.
type Role struct {
	Name              string
	Permissions       []Permission
	Healthcare        bool
	RequireMFA        bool
	MaxSessionMinutes int
}

// protectedResources holds resource names that carry protected health
// information; touching them raises the risk level and sets the PHI flag.
var protectedResources = map[string]struct{}{
	"patient_records":        {},
	"medical_notes":          {},
	"prescriptions":          {},
	"lab_results":            {},
	"appointments":           {},
	"patient_communications": {},
}

func IsProtectedResource(resource string) bool {
	_, ok := protectedResources[resource]
	return ok
}

// DefaultRoles is the clinic's role catalogue.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:              "patient",
			MaxSessionMinutes: 30,
			Permissions: []Permission{
				{Resource: "appointments", Operation: OpCreate, Conditions: &Conditions{OwnDataOnly: true}},
				{Resource: "appointments", Operation: OpRead, Conditions: &Conditions{OwnDataOnly: true}},
				{Resource: "appointments", Operation: OpUpdate, Conditions: &Conditions{OwnDataOnly: true}},
				{Resource: "patient_records", Operation: OpRead, Conditions: &Conditions{OwnDataOnly: true}},
				{Resource: "patient_communications", Operation: OpRead, Conditions: &Conditions{OwnDataOnly: true}},
			},
		},
		{
			Name:              "clinician",
			Healthcare:        true,
			RequireMFA:        true,
			MaxSessionMinutes: 20,
			Permissions: []Permission{
				{Resource: "patient_records", Operation: OpRead, Conditions: &Conditions{AllowedPurposes: []string{"treatment"}}},
				{Resource: "patient_records", Operation: OpUpdate, Conditions: &Conditions{AllowedPurposes: []string{"treatment"}}},
				{Resource: "medical_notes", Operation: OpCreate},
				{Resource: "medical_notes", Operation: OpRead},
				{Resource: "prescriptions", Operation: OpCreate, Conditions: &Conditions{AllowedPurposes: []string{"treatment"}}},
				{Resource: "lab_results", Operation: OpRead, Conditions: &Conditions{AllowedPurposes: []string{"treatment"}}},
				{Resource: "appointments", Operation: OpRead},
			},
		},
		{
			Name:              "scheduler",
			MaxSessionMinutes: 60,
			Permissions: []Permission{
				{Resource: "appointments", Operation: OpCreate},
				{Resource: "appointments", Operation: OpRead},
				{Resource: "appointments", Operation: OpUpdate},
				{Resource: "patient_communications", Operation: OpCreate},
				{Resource: "patient_communications", Operation: OpRead},
			},
		},
		{
			Name:              "billing",
			MaxSessionMinutes: 60,
			Permissions: []Permission{
				{Resource: "appointments", Operation: OpRead, Conditions: &Conditions{AllowedPurposes: []string{"billing"}}},
				{Resource: "billing_records", Operation: OpRead, Conditions: &Conditions{TimeWindow: &TimeWindow{StartHour: 8, EndHour: 18}}},
				{Resource: "billing_records", Operation: OpExport, Conditions: &Conditions{
					AllowedPurposes: []string{"billing"},
					TimeWindow:      &TimeWindow{StartHour: 8, EndHour: 18},
				}},
			},
		},
		{
			Name:              AdminRole,
			RequireMFA:        true,
			MaxSessionMinutes: 120,
			Permissions: []Permission{
				{Resource: Wildcard, Operation: OpCreate},
				{Resource: Wildcard, Operation: OpRead},
				{Resource: Wildcard, Operation: OpUpdate},
				{Resource: Wildcard, Operation: OpDelete},
				{Resource: Wildcard, Operation: OpExport},
				{Resource: Wildcard, Operation: OpAudit},
			},
		},
	}
}
