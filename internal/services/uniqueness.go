package services

import "context"

// UserUniqueFields returns the user columns guarded by a unique index.
func UserUniqueFields() []string {
	return []string{"email", "username"}
}

// UniquenessChecker pre-checks writes against unique constraints. The store's
// unique index stays authoritative; this only answers early.
type UniquenessChecker struct {
	prober ExistenceProber
}

// NewUniquenessChecker creates a checker backed by prober.
func NewUniquenessChecker(prober ExistenceProber) *UniquenessChecker {
	return &UniquenessChecker{prober: prober}
}

// IsUnique reports whether none of the unique fields present in candidates
// collides with a row other than excludeID. Unique fields absent from
// candidates are not checked. All checked fields are OR-ed in one probe, so a
// false result does not tell which field collided.
func (c *UniquenessChecker) IsUnique(ctx context.Context, candidates map[string]any, uniqueFields []string, excludeID *int64) (bool, error) {
	fields := make(map[string]any, len(uniqueFields))
	for _, name := range uniqueFields {
		if value, ok := candidates[name]; ok {
			fields[name] = value
		}
	}
	if len(fields) == 0 {
		return true, nil
	}

	exists, err := c.prober.ExistsAny(ctx, fields, excludeID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
