package port

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// ContentProvider supplies raw file content. Missing files are reported
// with domain.ErrNotFound.
type ContentProvider interface {
	ReadFile(path string) (string, error)
}
