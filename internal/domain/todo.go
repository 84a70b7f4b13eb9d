package domain

import "time"

// Todo is a single task owned by exactly one user.
type Todo struct {
	ID        int64
	OwnerID   string
	Title     string
	Memo      string
	Completed bool
	CreatedAt time.Time
}

// TodoPatch lists the mutable fields of a Todo. Nil fields are left untouched.
type TodoPatch struct {
	Title *string
	Memo  *string
}
