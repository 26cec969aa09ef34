package hazard

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidLocator = errors.New("invalid model locator")

type LocatorKind int

const (
	LocatorDir LocatorKind = iota
	LocatorZip
	LocatorS3
)

func (k LocatorKind) String() string {
	switch k {
	case LocatorDir:
		return "dir"
	case LocatorZip:
		return "zip"
	case LocatorS3:
		return "s3"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator says where a model's files live. Archives name the model directory
// inside them after a "!/" separator.
//
//	dir:/srv/models/COUS_2014     (or a bare path)
//	zip:nshm.zip!/COUS_2014
//	s3://hazard-models/nshm.zip!/COUS_2014
type Locator struct {
	Kind   LocatorKind
	Path   string // directory or archive file
	Bucket string
	Key    string
	Inner  string
}

// ParseLocator parses s, resolving relative filesystem paths against baseDir.
func ParseLocator(s, baseDir string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("%w: empty", ErrInvalidLocator)
	}

	switch {
	case strings.HasPrefix(s, "s3://"):
		outer, inner, err := splitArchive(s, strings.TrimPrefix(s, "s3://"))
		if err != nil {
			return Locator{}, err
		}
		bucket, key, ok := strings.Cut(outer, "/")
		if !ok || bucket == "" || key == "" {
			return Locator{}, fmt.Errorf("%w: %q needs s3://bucket/key", ErrInvalidLocator, s)
		}
		return Locator{Kind: LocatorS3, Bucket: bucket, Key: key, Inner: inner}, nil

	case strings.HasPrefix(s, "zip:"):
		outer, inner, err := splitArchive(s, strings.TrimPrefix(s, "zip:"))
		if err != nil {
			return Locator{}, err
		}
		return Locator{Kind: LocatorZip, Path: resolve(outer, baseDir), Inner: inner}, nil

	default:
		dir := strings.TrimPrefix(s, "dir:")
		if dir == "" || strings.Contains(dir, "!/") {
			return Locator{}, fmt.Errorf("%w: %q", ErrInvalidLocator, s)
		}
		return Locator{Kind: LocatorDir, Path: resolve(dir, baseDir)}, nil
	}
}

func (l Locator) String() string {
	switch l.Kind {
	case LocatorZip:
		return "zip:" + l.Path + "!/" + l.Inner
	case LocatorS3:
		return "s3://" + l.Bucket + "/" + l.Key + "!/" + l.Inner
	default:
		return "dir:" + l.Path
	}
}

func splitArchive(full, s string) (string, string, error) {
	outer, inner, ok := strings.Cut(s, "!/")
	if !ok || outer == "" {
		return "", "", fmt.Errorf("%w: %q needs <archive>!/<dir>", ErrInvalidLocator, full)
	}
	inner = strings.Trim(path.Clean("/"+inner), "/")
	if inner == "" {
		inner = "."
	}
	return outer, inner, nil
}

func resolve(p, baseDir string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
