package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPERADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleHOD         UserRole = "HOD"
	RoleDPAcademics UserRole = "DP_ACADEMICS"
	RoleTrainer     UserRole = "TRAINER"
	RoleTrainee     UserRole = "TRAINEE"
)

// SchedulingRoles may generate, publish and discard timetables.
var SchedulingRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleHOD, RoleDPAcademics}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
