package core

// Identity identifies the author of a transaction (Git commit author)
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
