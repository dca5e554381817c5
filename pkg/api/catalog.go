package api

// CatalogEntry describes one known permission for the admin UI. The
// authorization engine itself treats permission names as opaque strings;
// the catalog only exists so role editors can pick from a list.
type CatalogEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// PermissionCatalog returns every known permission grouped by functional
// category.
func PermissionCatalog() map[string][]CatalogEntry {
	return map[string][]CatalogEntry{
		"license": {
			{Name: "license.application.create", DisplayName: "Create License Applications", Description: "Create new license applications"},
			{Name: "license.application.read", DisplayName: "View License Applications", Description: "View license applications and details"},
			{Name: "license.application.update", DisplayName: "Update License Applications", Description: "Update license application information"},
			{Name: "license.application.delete", DisplayName: "Delete License Applications", Description: "Delete license applications"},
			{Name: "license.application.approve", DisplayName: "Approve License Applications", Description: "Approve or reject license applications"},
			{Name: "license.issue", DisplayName: "Issue Licenses", Description: "Issue new licenses"},
			{Name: "license.renew", DisplayName: "Renew Licenses", Description: "Process license renewals"},
			{Name: "license.suspend", DisplayName: "Suspend Licenses", Description: "Suspend or revoke licenses"},
			{Name: "license.duplicate", DisplayName: "Issue Duplicate Licenses", Description: "Issue duplicate licenses"},
		},
		"person": {
			{Name: "person.create", DisplayName: "Create Person Records", Description: "Create new person records"},
			{Name: "person.read", DisplayName: "View Person Records", Description: "View person information"},
			{Name: "person.update", DisplayName: "Update Person Records", Description: "Update person information"},
			{Name: "person.delete", DisplayName: "Delete Person Records", Description: "Delete person records"},
			{Name: "person.search", DisplayName: "Search Persons", Description: "Search and find person records"},
		},
		"financial": {
			{Name: "finance.payment.create", DisplayName: "Process Payments", Description: "Process and record payments"},
			{Name: "finance.payment.read", DisplayName: "View Financial Records", Description: "View payment and financial records"},
			{Name: "finance.payment.update", DisplayName: "Update Payment Records", Description: "Update payment information"},
			{Name: "finance.refund.process", DisplayName: "Process Refunds", Description: "Process refund requests"},
			{Name: "finance.receipt.generate", DisplayName: "Generate Receipts", Description: "Generate payment receipts"},
			{Name: "finance.reconciliation", DisplayName: "Financial Reconciliation", Description: "Perform financial reconciliation"},
		},
		"testing": {
			{Name: "test.schedule", DisplayName: "Schedule Tests", Description: "Schedule driving tests"},
			{Name: "test.conduct", DisplayName: "Conduct Tests", Description: "Conduct and score driving tests"},
			{Name: "test.results.read", DisplayName: "View Test Results", Description: "View test results and scores"},
			{Name: "test.results.update", DisplayName: "Update Test Results", Description: "Update test results and scores"},
			{Name: "test.booking.manage", DisplayName: "Manage Test Bookings", Description: "Manage test booking appointments"},
		},
		"vehicle": {
			{Name: "vehicle.registration.create", DisplayName: "Create Vehicle Registrations", Description: "Register new vehicles"},
			{Name: "vehicle.registration.read", DisplayName: "View Vehicle Registrations", Description: "View vehicle registration details"},
			{Name: "vehicle.registration.update", DisplayName: "Update Vehicle Registrations", Description: "Update vehicle registration information"},
			{Name: "vehicle.registration.renew", DisplayName: "Renew Vehicle Registrations", Description: "Process vehicle registration renewals"},
			{Name: "vehicle.inspection", DisplayName: "Vehicle Inspections", Description: "Conduct vehicle inspections"},
		},
		"administration": {
			{Name: "admin.user.create", DisplayName: "Create Users", Description: "Create new system users"},
			{Name: "admin.user.read", DisplayName: "View Users", Description: "View system users"},
			{Name: "admin.user.update", DisplayName: "Update Users", Description: "Update system user accounts"},
			{Name: "admin.user.delete", DisplayName: "Delete Users", Description: "Delete system user accounts"},
			{Name: "admin.role.manage", DisplayName: "Manage Roles", Description: "Create and manage user roles"},
			{Name: "admin.permission.manage", DisplayName: "Manage Permissions", Description: "Manage system permissions"},
			{Name: "admin.system.config", DisplayName: "System Configuration", Description: "Configure system settings"},
			{Name: "admin.audit.read", DisplayName: "View Audit Logs", Description: "View system audit logs"},
		},
		"reporting": {
			{Name: "report.license.read", DisplayName: "License Reports", Description: "Generate license-related reports"},
			{Name: "report.financial.read", DisplayName: "Financial Reports", Description: "Generate financial reports"},
			{Name: "report.operational.read", DisplayName: "Operational Reports", Description: "Generate operational reports"},
			{Name: "report.audit.read", DisplayName: "Audit Reports", Description: "Generate audit reports"},
			{Name: "report.export", DisplayName: "Export Reports", Description: "Export reports to various formats"},
		},
		"infringement": {
			{Name: "infringement.create", DisplayName: "Create Infringements", Description: "Create traffic infringement records"},
			{Name: "infringement.read", DisplayName: "View Infringements", Description: "View infringement records"},
			{Name: "infringement.update", DisplayName: "Update Infringements", Description: "Update infringement information"},
			{Name: "infringement.process", DisplayName: "Process Infringements", Description: "Process infringement payments and appeals"},
		},
		"location": {
			{Name: "location.region.manage", DisplayName: "Manage Regions", Description: "Manage region definitions and assignments"},
			{Name: "location.office.manage", DisplayName: "Manage Offices", Description: "Manage office definitions and assignments"},
			{Name: "location.assignment.manage", DisplayName: "Manage Location Assignments", Description: "Assign users to locations"},
		},
	}
}
