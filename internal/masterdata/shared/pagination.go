package shared

// ListFilters represents standard list page filters for master data.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
	Active  *bool
}

// Normalize fills in defaults and returns the SQL offset.
func (f *ListFilters) Normalize() int {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return (f.Page - 1) * f.Limit
}
