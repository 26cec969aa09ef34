package hazard

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/models"
	"hazard-service/pkg/registry"
)

var (
	ErrUnknownModel     = errors.New("model not in registry")
	ErrNoArchiveFetcher = errors.New("object store not configured")
)

// ArchiveFetcher retrieves model archives kept in object storage.
type ArchiveFetcher interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Fetch(ctx context.Context, bucket, key string) (string, error)
}

type registeredModel struct {
	id      models.ModelID
	name    string
	locator Locator
}

// Loader reads models named by a registry from directories, zip archives or
// object storage.
type Loader struct {
	models  []registeredModel
	byID    map[models.ModelID]registeredModel
	fetcher ArchiveFetcher
	log     logger.Logger
}

// NewLoader resolves every registry locator up front so a bad entry fails at
// startup. fetcher may be nil when no entry uses an s3:// locator.
func NewLoader(reg *registry.ModelRegistry, baseDir string, fetcher ArchiveFetcher, log logger.Logger) (*Loader, error) {
	l := &Loader{
		byID:    make(map[models.ModelID]registeredModel, len(reg.Models)),
		fetcher: fetcher,
		log:     log,
	}
	for _, entry := range reg.Models {
		id, err := entry.ModelID()
		if err != nil {
			return nil, err
		}
		loc, err := ParseLocator(entry.Locator, baseDir)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		if loc.Kind == LocatorS3 && fetcher == nil {
			return nil, fmt.Errorf("model %s: %w", id, ErrNoArchiveFetcher)
		}
		rm := registeredModel{id: id, name: entry.DisplayName, locator: loc}
		l.models = append(l.models, rm)
		l.byID[id] = rm
	}
	return l, nil
}

// Load reads the model with the given id. Every call reads from the source;
// callers are expected to cache the result.
func (l *Loader) Load(ctx context.Context, id models.ModelID) (*Model, error) {
	rm, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}

	fsys, closeFn, err := l.open(ctx, rm.locator)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rm.locator, err)
	}
	defer closeFn()

	model, err := decodeModel(ctx, fsys, id, rm.name)
	if err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", id, rm.locator, err)
	}

	l.log.Info("model loaded", map[string]interface{}{
		"model":       id.String(),
		"locator":     rm.locator.String(),
		"source_sets": len(model.sourceSets),
	})
	return model, nil
}

// Installed returns, in registry order, the models whose data is present.
func (l *Loader) Installed(ctx context.Context) []models.ModelID {
	var out []models.ModelID
	for _, rm := range l.models {
		ok, err := l.exists(ctx, rm.locator)
		if err != nil {
			l.log.Warn("model availability check failed", map[string]interface{}{
				"model":   rm.id.String(),
				"locator": rm.locator.String(),
				"error":   err.Error(),
			})
			continue
		}
		if !ok {
			l.log.Info("model not installed", map[string]interface{}{
				"model":   rm.id.String(),
				"locator": rm.locator.String(),
			})
			continue
		}
		out = append(out, rm.id)
	}
	return out
}

// DisplayName returns the registry display name for id.
func (l *Loader) DisplayName(id models.ModelID) string {
	return l.byID[id].name
}

func (l *Loader) open(ctx context.Context, loc Locator) (fs.FS, func() error, error) {
	switch loc.Kind {
	case LocatorZip:
		return openZip(loc.Path, loc.Inner)
	case LocatorS3:
		if l.fetcher == nil {
			return nil, nil, ErrNoArchiveFetcher
		}
		local, err := l.fetcher.Fetch(ctx, loc.Bucket, loc.Key)
		if err != nil {
			return nil, nil, err
		}
		return openZip(local, loc.Inner)
	default:
		return os.DirFS(loc.Path), func() error { return nil }, nil
	}
}

func (l *Loader) exists(ctx context.Context, loc Locator) (bool, error) {
	switch loc.Kind {
	case LocatorS3:
		if l.fetcher == nil {
			return false, ErrNoArchiveFetcher
		}
		return l.fetcher.Exists(ctx, loc.Bucket, loc.Key)
	case LocatorZip:
		if _, err := os.Stat(loc.Path); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
	default:
		if _, err := os.Stat(loc.Path); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
	}

	fsys, closeFn, err := l.open(ctx, loc)
	if err != nil {
		return false, err
	}
	defer closeFn()

	if _, err := fs.Stat(fsys, ConfigFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func openZip(archive, inner string) (fs.FS, func() error, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, nil, err
	}
	sub, err := fs.Sub(zr, inner)
	if err != nil {
		zr.Close()
		return nil, nil, err
	}
	return sub, zr.Close, nil
}
