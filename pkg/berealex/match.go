package berealex

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// MediaFile is an on-disk file referenced by a record.
type MediaFile struct {
	SourcePath string
	Role       Role
	Kind       MediaKind
}

// ResolveMediaPath maps a manifest file reference to its on-disk location
// under the export root. Manifest paths embed a user-id segment that is not
// present on disk ("/Photos/post/<uid>/x.webp" lives at "Photos/post/x.webp"),
// and some exports reference CDN URLs instead of paths; both resolve to a
// local file by basename convention.
func ResolveMediaPath(root string, role Role, ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		dir := "Photos/post"
		if role == RoleRealmoji {
			dir = "Photos/realmoji"
		}
		return filepath.Join(root, filepath.FromSlash(dir), path.Base(u.Path))
	}

	p := strings.TrimPrefix(strings.TrimSpace(ref), "/")
	parts := strings.Split(p, "/")
	if len(parts) > 3 && parts[0] == "Photos" {
		// drop the user-id segment after the category
		p = path.Join(append([]string{parts[0], parts[1]}, parts[3:]...)...)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// MatchFiles locates the media files a record references and verifies they
// exist. A missing file skips that sub-item only; the record's remaining
// files still export. Conversation records already carry absolute paths.
func MatchFiles(root string, rec *ExportRecord) (found []MediaFile, missing int) {
	for _, rf := range rec.Files {
		src := rf.ManifestPath
		if rec.Category != CategoryConversations {
			src = ResolveMediaPath(root, rf.Role, rf.ManifestPath)
		}

		if _, err := os.Stat(src); err != nil {
			klog.Warningf("%s: %s file %s not found, skipping", rec.ID, rf.Role, src)
			missing++
			continue
		}

		kind := KindForExt(filepath.Ext(src))
		if kind == KindUnknown {
			klog.Warningf("%s: unsupported format %s, skipping", rec.ID, filepath.Ext(src))
			missing++
			continue
		}

		found = append(found, MediaFile{SourcePath: src, Role: rf.Role, Kind: kind})
	}
	return found, missing
}
