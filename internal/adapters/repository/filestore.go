package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for Dimensions
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
	types "github.com/aquametrics/shrimpd/internal/domain/types"
)

// Default store configuration constants.
const (
	defaultMinArtifactBytes = 100_000
	annotationExt           = ".json"
	dirPerm                 = 0o755
	filePerm                = 0o644
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// FileAnnotationStore keeps one JSON file per annotated sample.
type FileAnnotationStore struct {
	dir string
}

// NewFileAnnotationStore creates an annotation store rooted at dir.
func NewFileAnnotationStore(dir string) *FileAnnotationStore {
	return &FileAnnotationStore{dir: dir}
}

// Save persists the region list for one sample image.
func (s *FileAnnotationStore) Save(_ context.Context, ann model.Annotation) error {
	if err := validName(ann.ImageName); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("creating annotations dir: %w", err)
	}

	data, err := json.MarshalIndent(ann, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding annotation %s: %w", ann.ImageName, err)
	}

	path := filepath.Join(s.dir, ann.ImageName+annotationExt)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("writing annotation %s: %w", ann.ImageName, err)
	}
	return nil
}

// Get returns the annotation for an image.
func (s *FileAnnotationStore) Get(_ context.Context, imageName string) (model.Annotation, error) {
	if err := validName(imageName); err != nil {
		return model.Annotation{}, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, imageName+annotationExt))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Annotation{}, fmt.Errorf("%w: annotation for %s", ErrNotFound, imageName)
		}
		return model.Annotation{}, fmt.Errorf("reading annotation %s: %w", imageName, err)
	}

	var ann model.Annotation
	if err := json.Unmarshal(data, &ann); err != nil {
		return model.Annotation{}, fmt.Errorf("decoding annotation %s: %w", imageName, err)
	}
	return ann, nil
}

// List returns every saved annotation, sorted by image name.
func (s *FileAnnotationStore) List(ctx context.Context) ([]model.Annotation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing annotations: %w", err)
	}

	var anns []model.Annotation
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), annotationExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), annotationExt)
		ann, err := s.Get(ctx, name)
		if err != nil {
			// Corrupt files are skipped, not fatal.
			continue
		}
		anns = append(anns, ann)
	}

	sort.Slice(anns, func(i, j int) bool { return anns[i].ImageName < anns[j].ImageName })
	return anns, nil
}

// Count returns the number of annotated samples.
func (s *FileAnnotationStore) Count(ctx context.Context) int {
	anns, err := s.List(ctx)
	if err != nil {
		return 0
	}
	return len(anns)
}

// FileImageStore serves uploaded source images from a directory.
type FileImageStore struct {
	dir string
}

// NewFileImageStore creates an image store rooted at dir.
func NewFileImageStore(dir string) *FileImageStore {
	return &FileImageStore{dir: dir}
}

// Path resolves an image name to its on-disk path.
func (s *FileImageStore) Path(_ context.Context, imageName string) (string, error) {
	if err := validName(imageName); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, imageName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: image %s", ErrNotFound, imageName)
		}
		return "", fmt.Errorf("checking image %s: %w", imageName, err)
	}
	return path, nil
}

// Dimensions returns the pixel width and height of an image.
func (s *FileImageStore) Dimensions(ctx context.Context, imageName string) (int, int, error) {
	path, err := s.Path(ctx, imageName)
	if err != nil {
		return 0, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening image %s: %w", imageName, err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image %s: %w", imageName, err)
	}
	return cfg.Width, cfg.Height, nil
}

// List returns the names of all uploaded images, sorted.
func (s *FileImageStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing images: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)
	return names, nil
}

// FileArtifactStore keeps trained model artifacts in a directory.
type FileArtifactStore struct {
	dir      string
	minBytes int64
}

// ArtifactOption applies a configuration option to the FileArtifactStore.
type ArtifactOption func(*FileArtifactStore)

// WithMinArtifactBytes sets the minimum size for a valid model artifact.
func WithMinArtifactBytes(n int64) ArtifactOption {
	return func(s *FileArtifactStore) {
		if n > 0 {
			s.minBytes = n
		}
	}
}

// NewFileArtifactStore creates an artifact store rooted at dir.
func NewFileArtifactStore(dir string, opts ...ArtifactOption) *FileArtifactStore {
	s := &FileArtifactStore{
		dir:      dir,
		minBytes: defaultMinArtifactBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// List returns metadata for every stored artifact, newest first.
func (s *FileArtifactStore) List(_ context.Context) ([]types.ModelInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	var infos []types.ModelInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, types.ModelInfo{
			Name:       e.Name(),
			SizeBytes:  fi.Size(),
			ModifiedAt: fi.ModTime(),
			Path:       filepath.Join(s.dir, e.Name()),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ModifiedAt.After(infos[j].ModifiedAt) })
	return infos, nil
}

// Stat returns metadata for one artifact by name.
func (s *FileArtifactStore) Stat(_ context.Context, name string) (types.ModelInfo, error) {
	if err := validName(name); err != nil {
		return types.ModelInfo{}, err
	}

	path := filepath.Join(s.dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.ModelInfo{}, fmt.Errorf("%w: artifact %s", ErrNotFound, name)
		}
		return types.ModelInfo{}, fmt.Errorf("checking artifact %s: %w", name, err)
	}

	return types.ModelInfo{
		Name:       name,
		SizeBytes:  fi.Size(),
		ModifiedAt: fi.ModTime(),
		Path:       path,
	}, nil
}

// Validate checks that the artifact at path exists and exceeds the minimum
// size for a genuinely trained model.
func (s *FileArtifactStore) Validate(_ context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("checking artifact %s: %w", path, err)
	}
	if fi.Size() < s.minBytes {
		return fmt.Errorf("%w: %s is %d bytes, need %d", ErrArtifactTooSmall, path, fi.Size(), s.minBytes)
	}
	return nil
}

// validName rejects empty names and path traversal.
func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
