package service

import "github.com/noah-isme/timetable-engine/internal/models"

// EntryScopeFor returns the entries a caller may see. Administrators see
// drafts as well; every other role sees published entries, further limited
// to their own class groups, trainer id or departments.
func EntryScopeFor(claims *models.JWTClaims) models.EntryFilter {
	if claims == nil {
		return models.DenyAll()
	}
	switch claims.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return models.EntryFilter{}
	case models.RoleDPAcademics:
		return models.EntryFilter{PublishedOnly: true}
	case models.RoleHOD:
		if len(claims.DepartmentIDs) == 0 {
			return models.DenyAll()
		}
		return models.EntryFilter{PublishedOnly: true, DepartmentIDs: claims.DepartmentIDs}
	case models.RoleTrainer:
		if claims.UserID == "" {
			return models.DenyAll()
		}
		return models.EntryFilter{PublishedOnly: true, TrainerIDs: []string{claims.UserID}}
	case models.RoleTrainee:
		if len(claims.ClassGroupIDs) == 0 {
			return models.DenyAll()
		}
		return models.EntryFilter{PublishedOnly: true, ClassGroupIDs: claims.ClassGroupIDs}
	default:
		return models.DenyAll()
	}
}

// NarrowEntryFilter intersects a requested filter with the caller's scope.
func NarrowEntryFilter(requested, scope models.EntryFilter) models.EntryFilter {
	if requested.MatchesNothing() || scope.MatchesNothing() {
		return models.DenyAll()
	}
	out := requested
	out.PublishedOnly = requested.PublishedOnly || scope.PublishedOnly

	var ok bool
	if out.ClassGroupIDs, ok = intersectIDs(requested.ClassGroupIDs, scope.ClassGroupIDs); !ok {
		return models.DenyAll()
	}
	if out.TrainerIDs, ok = intersectIDs(requested.TrainerIDs, scope.TrainerIDs); !ok {
		return models.DenyAll()
	}
	if out.DepartmentIDs, ok = intersectIDs(requested.DepartmentIDs, scope.DepartmentIDs); !ok {
		return models.DenyAll()
	}
	return out
}

// intersectIDs treats an empty list as unrestricted. ok is false when both
// sides are restricted and share nothing.
func intersectIDs(requested, allowed []string) ([]string, bool) {
	if len(allowed) == 0 {
		return requested, true
	}
	if len(requested) == 0 {
		return allowed, true
	}
	permitted := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		permitted[id] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := permitted[id]; ok {
			out = append(out, id)
		}
	}
	return out, len(out) > 0
}
