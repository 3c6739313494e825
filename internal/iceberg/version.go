package iceberg

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"icescan/internal/domain"
)

const (
	metadataDir      = "metadata"
	versionHintFile  = "version-hint.text"
	metadataFileExt  = ".metadata.json"
	versionedPattern = "v%d" + metadataFileExt
)

// MetadataFile identifies one committed table metadata document.
type MetadataFile struct {
	Version uint64
	Path    string
}

// MetadataVersionResolver finds the newest metadata document of a table.
type MetadataVersionResolver struct {
	io     domain.FileIO
	logger *slog.Logger
}

// NewMetadataVersionResolver creates a resolver reading through fio.
func NewMetadataVersionResolver(fio domain.FileIO, logger *slog.Logger) *MetadataVersionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataVersionResolver{io: fio, logger: logger}
}

// LatestVersion returns the highest committed metadata version under root.
func (r *MetadataVersionResolver) LatestVersion(ctx context.Context, root string) (uint64, error) {
	f, err := r.Latest(ctx, root)
	if err != nil {
		return 0, err
	}
	return f.Version, nil
}

// Latest returns the newest metadata document under root. The version hint
// only picks the starting point of an ascending search, so a stale hint never
// hides newer commits. When root names a metadata document directly, that
// document is used as-is.
func (r *MetadataVersionResolver) Latest(ctx context.Context, root string) (MetadataFile, error) {
	if IsMetadataFile(root) {
		return r.direct(ctx, root)
	}

	start, hinted, err := r.hintedStart(ctx, root)
	if err != nil {
		return MetadataFile{}, err
	}
	if !hinted {
		ok, err := r.exists(ctx, versionPath(root, 1))
		if err != nil {
			return MetadataFile{}, err
		}
		if !ok {
			return r.latestListed(ctx, root)
		}
	}

	v := start
	for {
		ok, err := r.exists(ctx, versionPath(root, v+1))
		if err != nil {
			return MetadataFile{}, err
		}
		if !ok {
			break
		}
		v++
	}
	r.logger.Debug("resolved metadata version", "table", root, "version", v, "hinted", hinted)
	return MetadataFile{Version: v, Path: versionPath(root, v)}, nil
}

func (r *MetadataVersionResolver) direct(ctx context.Context, location string) (MetadataFile, error) {
	ok, err := r.exists(ctx, location)
	if err != nil {
		return MetadataFile{}, err
	}
	if !ok {
		return MetadataFile{}, domain.ErrNotFound("metadata document %q does not exist", location)
	}
	v, _ := ParseMetadataVersion(baseName(location))
	return MetadataFile{Version: v, Path: location}, nil
}

// hintedStart reads version-hint.text. A missing, unparsable or stale hint is
// not an error; the search then starts at version 1.
func (r *MetadataVersionResolver) hintedStart(ctx context.Context, root string) (uint64, bool, error) {
	hintPath := JoinLocation(root, metadataDir+"/"+versionHintFile)
	data, err := r.io.ReadFull(ctx, hintPath)
	if err != nil {
		if domain.IsObjectNotFound(err) {
			return 1, false, nil
		}
		return 0, false, domain.ErrIO(hintPath, err)
	}

	text := strings.TrimSpace(string(data))
	hint, err := strconv.ParseUint(text, 10, 64)
	if err != nil || hint == 0 {
		r.logger.Warn("ignoring unparsable version hint", "table", root, "hint", text)
		return 1, false, nil
	}

	ok, err := r.exists(ctx, versionPath(root, hint))
	if err != nil {
		return 0, false, err
	}
	if !ok {
		r.logger.Warn("ignoring stale version hint", "table", root, "hint", hint)
		return 1, false, nil
	}
	return hint, true, nil
}

// latestListed is the fallback for tables whose first metadata versions were
// expired or whose documents use the "<version>-<uuid>" naming.
func (r *MetadataVersionResolver) latestListed(ctx context.Context, root string) (MetadataFile, error) {
	lister, ok := r.io.(domain.Lister)
	if !ok {
		return MetadataFile{}, domain.ErrNotFound("no metadata documents found for table %q", root)
	}

	prefix := JoinLocation(root, metadataDir+"/")
	locations, err := lister.List(ctx, prefix)
	if err != nil {
		return MetadataFile{}, domain.ErrIO(prefix, err)
	}

	var (
		best  MetadataFile
		found bool
	)
	for _, loc := range locations {
		v, ok := ParseMetadataVersion(baseName(loc))
		if !ok {
			continue
		}
		if !found || v > best.Version {
			best = MetadataFile{Version: v, Path: loc}
			found = true
		}
	}
	if !found {
		return MetadataFile{}, domain.ErrNotFound("no metadata documents found for table %q", root)
	}
	r.logger.Debug("resolved metadata version from listing", "table", root, "version", best.Version)
	return best, nil
}

func (r *MetadataVersionResolver) exists(ctx context.Context, location string) (bool, error) {
	ok, err := r.io.Exists(ctx, location)
	if err != nil {
		return false, domain.ErrIO(location, err)
	}
	return ok, nil
}

// ParseMetadataVersion extracts the version from a metadata document name.
// Both "v12.metadata.json" and "00012-<uuid>.metadata.json" are recognised.
func ParseMetadataVersion(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, metadataFileExt)
	if !ok || stem == "" {
		return 0, false
	}
	if rest, ok := strings.CutPrefix(stem, "v"); ok {
		v, err := strconv.ParseUint(rest, 10, 64)
		return v, err == nil
	}
	digits, _, ok := strings.Cut(stem, "-")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	return v, err == nil
}

// IsMetadataFile reports whether location names a metadata document rather
// than a table root.
func IsMetadataFile(location string) bool {
	return strings.HasSuffix(location, metadataFileExt)
}

// TableRoot returns the table root for location. A metadata document path
// maps to the directory above its metadata directory.
func TableRoot(location string) string {
	if !IsMetadataFile(location) {
		return strings.TrimRight(location, "/")
	}
	dir := location[:max(strings.LastIndex(location, "/"), 0)]
	if strings.HasSuffix(dir, "/"+metadataDir) {
		return strings.TrimSuffix(dir, "/"+metadataDir)
	}
	return dir
}

func versionPath(root string, version uint64) string {
	return JoinLocation(root, metadataDir+"/"+fmt.Sprintf(versionedPattern, version))
}

func baseName(location string) string {
	return location[strings.LastIndex(location, "/")+1:]
}
