package store

import "time"

// Jot is the row shape of the database backend.
type Jot struct {
	Token     string    `json:"token"`
	Content   string    `json:"content"` // Full document text, never a diff
	UpdatedAt time.Time `json:"updated_at"`
}

// FileName is the storage key of a jot in the file and object storage backends.
func FileName(token string) string {
	return "jot_" + token + ".txt"
}

// TokenFromFileName reverses FileName; ok is false for unrelated names.
func TokenFromFileName(name string) (string, bool) {
	const prefix, suffix = "jot_", ".txt"
	if len(name) <= len(prefix)+len(suffix) || name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}
