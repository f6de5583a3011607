package models

import "time"

// Credential is the identity-provider record behind a User. It is kept in
// its own collection so profile reads never carry the password hash.
type Credential struct {
	ID                 string    `bson:"_id"`
	Email              string    `bson:"email"`
	PasswordHash       string    `bson:"password_hash"`
	MustChangePassword bool      `bson:"must_change_password"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}
