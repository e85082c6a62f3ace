package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeRe = regexp.MustCompile(`[^a-z0-9]+`)
	upMarker = "-- +goose Up"
	dnMarker = "-- +goose Down"
)

// File is one migration on disk.
type File struct {
	Version string
	Name    string
	Path    string
}

// ListDir returns the migrations in dir ordered by version. Non-SQL files are
// ignored; a malformed or duplicated SQL filename is an error.
func ListDir(dir string) ([]File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []File
	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := fileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (want %s_name.sql)", e.Name(), versionLayout)
		}
		if prev, dup := seen[m[1]]; dup {
			return nil, fmt.Errorf("version %s used by %q and %q", m[1], prev, e.Name())
		}
		seen[m[1]] = e.Name()
		files = append(files, File{Version: m[1], Name: m[2], Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks every migration has an Up section followed by a Down
// section.
func ValidateDir(dir string) error {
	files, err := ListDir(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read %q: %w", f.Path, err)
		}
		up := strings.Index(string(b), upMarker)
		down := strings.Index(string(b), dnMarker)
		switch {
		case up < 0:
			return fmt.Errorf("migration %s missing %q", f.Version, upMarker)
		case down < 0:
			return fmt.Errorf("migration %s missing %q", f.Version, dnMarker)
		case down < up:
			return fmt.Errorf("migration %s has Down before Up", f.Version)
		}
	}
	return nil
}

// CreateSQLMigration writes an empty goose migration named after name. The
// version is the current UTC time, bumped past the newest existing version so
// files always sort after what is already there.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	slug := strings.Trim(unsafeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q is empty after cleaning", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := ListDir(dir)
	if err != nil {
		return "", err
	}

	at := now.UTC().Truncate(time.Second)
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, existing[n-1].Version)
		if err == nil && !at.After(latest) {
			at = latest.Add(time.Second)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.Format(versionLayout), slug))
	body := fmt.Sprintf("%s\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n%s\n-- +goose StatementBegin\n-- revert %s\n-- +goose StatementEnd\n", upMarker, slug, dnMarker, slug)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, nil
}
