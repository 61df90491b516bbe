package models

// User is the canonical account returned by the account endpoint.
// Uploads is the authoritative upload list rendered by the dashboard.
type User struct {
	ID       int64          `json:"id"`
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Uploads  []UploadRecord `json:"uploads"`
}

// Clone returns a deep copy; callers outside the session manager only ever
// see copies.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Uploads != nil {
		c.Uploads = make([]UploadRecord, len(u.Uploads))
		copy(c.Uploads, u.Uploads)
	}
	return &c
}

// HasUpload reports whether a record with fileID is in the list.
func (u *User) HasUpload(fileID string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Uploads {
		if r.FileID == fileID {
			return true
		}
	}
	return false
}
