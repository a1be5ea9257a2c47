package registry

// Make is a normalized vehicle manufacturer entry from the vPIC registry.
type Make struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Model is a normalized vehicle model entry for a make and model year.
type Model struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
