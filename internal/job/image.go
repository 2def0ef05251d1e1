package job

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the type of a source image.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindDevice:
		return "device"
	default:
		return "file"
	}
}

// videoTSDir is the DVD-Video folder that marks an extracted disc.
const videoTSDir = "VIDEO_TS"

// DiscImage is one source: an image file, a block device, or an extracted
// disc directory. Path is absolute.
type DiscImage struct {
	Path string
	Kind Kind
}

// Name is the file name used for scratch paths. A VIDEO_TS directory is
// named after its parent.
func (d DiscImage) Name() string {
	path := filepath.Clean(d.Path)
	if d.Kind == KindDirectory && strings.EqualFold(filepath.Base(path), videoTSDir) {
		path = filepath.Dir(path)
	}
	return filepath.Base(path)
}

// BaseName is Name without its extension; outputs are named after it.
func (d DiscImage) BaseName() string {
	name := d.Name()
	if d.Kind != KindFile {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Dir is the directory holding the image, the default output location.
func (d DiscImage) Dir() string {
	path := filepath.Clean(d.Path)
	if d.Kind == KindDirectory && strings.EqualFold(filepath.Base(path), videoTSDir) {
		path = filepath.Dir(path)
	}
	return filepath.Dir(path)
}

// Enumerate resolves inputs into a sorted, de-duplicated image list. Files
// must carry one of extensions (case-insensitive). Directories are taken as
// a disc when they are or contain VIDEO_TS; otherwise their images are
// listed, descending into sub-directories when recursive is set.
func Enumerate(inputs []string, recursive bool, extensions []string) ([]DiscImage, error) {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	matches := func(name string) bool {
		_, ok := exts[strings.ToLower(filepath.Ext(name))]
		return ok
	}

	seen := make(map[string]DiscImage)
	add := func(img DiscImage) {
		seen[img.Path] = img
	}

	var errs []error
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		abs, err := filepath.Abs(input)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", input, err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", input, err))
			continue
		}

		switch {
		case info.Mode()&os.ModeDevice != 0:
			add(DiscImage{Path: abs, Kind: KindDevice})
		case info.Mode().IsRegular():
			if !matches(abs) {
				errs = append(errs, fmt.Errorf("input %s: unsupported extension", input))
				continue
			}
			add(DiscImage{Path: abs, Kind: KindFile})
		case info.IsDir():
			if isDiscDir(abs) {
				add(DiscImage{Path: abs, Kind: KindDirectory})
				continue
			}
			found, err := scanDir(abs, recursive, matches)
			if err != nil {
				errs = append(errs, err)
			}
			for _, img := range found {
				add(img)
			}
		default:
			errs = append(errs, fmt.Errorf("input %s: unsupported file type", input))
		}
	}

	images := make([]DiscImage, 0, len(seen))
	for _, img := range seen {
		images = append(images, img)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, errors.Join(errs...)
}

func scanDir(root string, recursive bool, matches func(string) bool) ([]DiscImage, error) {
	var out []DiscImage
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive {
				return fs.SkipDir
			}
			if isDiscDir(path) {
				out = append(out, DiscImage{Path: path, Kind: KindDirectory})
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && matches(d.Name()) {
			out = append(out, DiscImage{Path: path, Kind: KindFile})
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("scan %s: %w", root, err)
	}
	return out, nil
}

// isDiscDir reports whether dir is a VIDEO_TS folder or directly holds one.
func isDiscDir(dir string) bool {
	if strings.EqualFold(filepath.Base(dir), videoTSDir) {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, videoTSDir))
	return err == nil && info.IsDir()
}
