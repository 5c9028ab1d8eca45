package fileaccess

import "strings"

// Filter is a named group of file extensions offered by a picker.
// An extension of "*" matches every file.
type Filter struct {
	Name       string
	Extensions []string
}

// Pattern renders the filter as a semicolon-separated glob list, e.g.
// "*.txt;*.md".
func (f Filter) Pattern() string {
	globs := make([]string, 0, len(f.Extensions))
	for _, ext := range f.Extensions {
		if ext == "*" {
			globs = append(globs, "*")
			continue
		}
		globs = append(globs, "*."+strings.TrimPrefix(ext, "."))
	}
	return strings.Join(globs, ";")
}

// DefaultFilters returns the filter set shared by the open and save pickers,
// text formats first.
func DefaultFilters() []Filter {
	return []Filter{
		{Name: "Text", Extensions: []string{"txt", "md", "json", "js", "ts", "jsx", "tsx", "html", "css", "xml"}},
		{Name: "All files", Extensions: []string{"*"}},
	}
}
