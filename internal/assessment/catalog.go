package assessment

// SourceResolver looks up documents by id.
type SourceResolver interface {
	Source(id string) (Source, bool)
}

// Catalog is a fixed list of sources.
type Catalog []Source

func (c Catalog) Source(id string) (Source, bool) {
	for _, s := range c {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// DefaultCatalog returns the sample library shipped with the dashboard.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "1", Name: "Introduction to Machine Learning.pdf", Processed: true},
		{ID: "2", Name: "Data Structures Guide.docx", Processed: true},
		{ID: "3", Name: "Web Development Basics.txt", Processed: false},
	}
}

// Sources chains resolvers; the first match wins.
type Sources []SourceResolver

func (s Sources) Source(id string) (Source, bool) {
	for _, r := range s {
		if r == nil {
			continue
		}
		if src, ok := r.Source(id); ok {
			return src, true
		}
	}
	return Source{}, false
}
