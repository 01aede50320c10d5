package nresource

// DataResourceFactory creates DataResource values for binary extensions.
type DataResourceFactory struct{}

func (DataResourceFactory) CreateResource(path string) (*Base, Loader, error) {
	r := NewDataResource(path)
	return r.Base, r, nil
}
func (DataResourceFactory) Extensions() []string { return []string{".bin", ".dat"} }
func (DataResourceFactory) Name() string         { return "data" }
func (DataResourceFactory) Priority() int         { return 0 }

// TextResourceFactory creates TextResource values for plain-text extensions.
type TextResourceFactory struct{}

func (TextResourceFactory) CreateResource(path string) (*Base, Loader, error) {
	r := NewTextResource(path)
	return r.Base, r, nil
}
func (TextResourceFactory) Extensions() []string { return []string{".txt"} }
func (TextResourceFactory) Name() string         { return "text" }
func (TextResourceFactory) Priority() int         { return 0 }

// ConfigResourceFactory creates ConfigResource values for JSON config
// extensions.
type ConfigResourceFactory struct{}

func (ConfigResourceFactory) CreateResource(path string) (*Base, Loader, error) {
	r := NewConfigResource(path, nil)
	return r.Base, r, nil
}
func (ConfigResourceFactory) Extensions() []string { return []string{".json"} }
func (ConfigResourceFactory) Name() string         { return "config" }
func (ConfigResourceFactory) Priority() int         { return 0 }
