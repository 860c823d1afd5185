package retention

type PurgeMethod string

const (
	MethodSecureDelete PurgeMethod = "secure_delete"
	MethodAnonymize    PurgeMethod = "anonymize"
	MethodArchive      PurgeMethod = "archive"
)

// Policy is a static catalogue entry, read-only at runtime. Retention periods
// are whole days; purge never fires before the period has fully elapsed.
type Policy struct {
	Category        string      `json:"category"`
	RetentionDays   int         `json:"retentionDays"`
	ConsentRequired bool        `json:"consentRequired"`
	PurgeMethod     PurgeMethod `json:"purgeMethod"`
	LegalBasis      string      `json:"legalBasis"`
}

const (
	CategoryAppointments   = "appointment_records"
	CategoryCommunications = "patient_communications"
	CategoryAuditLogs      = "audit_logs"
	CategorySessions       = "session_data"
	CategoryCredentials    = "user_credentials"
)

// DefaultPolicies is the clinic's retention catalogue. Clinical records keep
// the statutory seven years, audit logs six; operational data is short-lived.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Category:      CategoryAppointments,
			RetentionDays: 7 * 365,
			PurgeMethod:   MethodSecureDelete,
			LegalBasis:    "medical records statute, 7 year minimum",
		},
		{
			Category:        CategoryCommunications,
			RetentionDays:   7 * 365,
			ConsentRequired: true,
			PurgeMethod:     MethodSecureDelete,
			LegalBasis:      "medical records statute, 7 year minimum",
		},
		{
			Category:      CategoryAuditLogs,
			RetentionDays: 6 * 365,
			PurgeMethod:   MethodArchive,
			LegalBasis:    "security audit requirements, 6 years",
		},
		{
			Category:      CategorySessions,
			RetentionDays: 90,
			PurgeMethod:   MethodSecureDelete,
			LegalBasis:    "operational necessity",
		},
		{
			Category:      CategoryCredentials,
			RetentionDays: 90,
			PurgeMethod:   MethodAnonymize,
			LegalBasis:    "90 days after account closure",
		},
	}
}
