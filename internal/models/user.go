package models

// User represents a row of the "user" table.
type User struct {
	ID             int64   `json:"id" db:"id"`                     // Primary key, assigned by the database
	Username       string  `json:"username" db:"username"`         // Unique username
	Email          string  `json:"email" db:"email"`               // Unique email
	FirstName      *string `json:"first_name" db:"first_name"`     // Optional first name
	LastName       *string `json:"last_name" db:"last_name"`       // Optional last name
	HashedPassword string  `json:"-" db:"hashed_password"`         // bcrypt digest, never serialized
	IsSuperuser    bool    `json:"is_superuser" db:"is_superuser"` // Administrative privileges
	IsActive       bool    `json:"is_active" db:"is_active"`       // Inactive users cannot log in
}

// UserPublic is the outward representation of a user.
// swagger:model UserPublic
type UserPublic struct {
	// example: 1
	ID int64 `json:"id"`
	// example: newuser
	Username string `json:"username"`
	// example: newuser@example.com
	Email string `json:"email"`
	// example: John
	FirstName *string `json:"first_name"`
	// example: Doe
	LastName *string `json:"last_name"`
	// example: false
	IsSuperuser bool `json:"is_superuser"`
	// example: true
	IsActive bool `json:"is_active"`
}

// Public projects the user without its password digest.
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
	}
}

// UserCreate is the request body for creating a user.
// swagger:model UserCreate
type UserCreate struct {
	// required: true
	// example: newuser
	Username string `json:"username" validate:"required,max=255"`
	// required: true
	// example: newuser@example.com
	Email string `json:"email" validate:"required,max=255"`
	// required: true
	// example: password123
	Password string `json:"password" validate:"required,max=72"`
	// example: John
	FirstName *string `json:"first_name" validate:"omitempty,max=255"`
	// example: Doe
	LastName *string `json:"last_name" validate:"omitempty,max=255"`
	// example: false
	IsSuperuser bool `json:"is_superuser"`
	// Defaults to true when omitted
	// example: true
	IsActive *bool `json:"is_active"`
}

// UniqueCandidates returns the unique columns of the new row.
func (u *UserCreate) UniqueCandidates() map[string]any {
	return map[string]any{
		"username": u.Username,
		"email":    u.Email,
	}
}

// UserUpdate is the admin update body. Absent fields are left unchanged;
// an explicit null clears a name.
// swagger:model UserUpdate
type UserUpdate struct {
	Username    *string          `json:"username" validate:"omitempty,min=1,max=255"`
	Email       *string          `json:"email" validate:"omitempty,min=1,max=255"`
	FirstName   Optional[string] `json:"first_name" validate:"omitempty,max=255" swaggertype:"string"`
	LastName    Optional[string] `json:"last_name" validate:"omitempty,max=255" swaggertype:"string"`
	IsSuperuser *bool            `json:"is_superuser"`
	IsActive    *bool            `json:"is_active"`
}

// UniqueCandidates returns the unique columns present in the update.
func (u *UserUpdate) UniqueCandidates() map[string]any {
	return uniqueCandidates(u.Username, u.Email)
}

// Patch converts the update into a repository change set.
func (u *UserUpdate) Patch() UserPatch {
	return UserPatch{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
	}
}

// UserUpdateMe is the self-service update body. Absent fields are left
// unchanged; an explicit null clears a name.
// swagger:model UserUpdateMe
type UserUpdateMe struct {
	FirstName Optional[string] `json:"first_name" validate:"omitempty,max=255" swaggertype:"string"`
	LastName  Optional[string] `json:"last_name" validate:"omitempty,max=255" swaggertype:"string"`
	Email     *string          `json:"email" validate:"omitempty,min=1,max=255"`
	Username  *string          `json:"username" validate:"omitempty,min=1,max=255"`
}

// UniqueCandidates returns the unique columns present in the update.
func (u *UserUpdateMe) UniqueCandidates() map[string]any {
	return uniqueCandidates(u.Username, u.Email)
}

// Patch converts the update into a repository change set.
func (u *UserUpdateMe) Patch() UserPatch {
	return UserPatch{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// UpdatePassword is the body of a password change.
// swagger:model UpdatePassword
type UpdatePassword struct {
	// required: true
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	// required: true
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

// UserPatch is an explicit change set for a user row. Nil pointers and unset
// optionals are not written; a set optional without a value writes NULL.
type UserPatch struct {
	Username       *string
	Email          *string
	FirstName      Optional[string]
	LastName       Optional[string]
	HashedPassword *string
	IsSuperuser    *bool
	IsActive       *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && !p.FirstName.Set && !p.LastName.Set &&
		p.HashedPassword == nil && p.IsSuperuser == nil && p.IsActive == nil
}

func uniqueCandidates(username, email *string) map[string]any {
	fields := make(map[string]any, 2)
	if username != nil {
		fields["username"] = *username
	}
	if email != nil {
		fields["email"] = *email
	}
	return fields
}
