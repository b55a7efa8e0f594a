// Package snapshot knows the layout of published CommonCrawl domain graph
// releases: which versions exist, which files make up a release, and
// where they are downloaded from.
package snapshot

import (
	"os"
	"path/filepath"
)

// DefaultVersion is the release used when none is configured.
const DefaultVersion = "cc-main-2024-feb-apr-may"

// baseURL is the download root; releases live under <version>/domain/.
const baseURL = "https://data.commoncrawl.org/projects/hyperlinkgraph"

// knownVersions is ordered newest first.
var knownVersions = []string{
	"cc-main-2024-nov-dec-jan",
	"cc-main-2024-feb-apr-may",
	"cc-main-2023-nov-dec-jan",
	"cc-main-2023-may-jun-jul",
	"cc-main-2022-nov-dec-jan",
}

// KnownVersions returns the published releases, newest first.
func KnownVersions() []string {
	return append([]string(nil), knownVersions...)
}

// IsKnown reports whether version is a published release.
func IsKnown(version string) bool {
	for _, v := range knownVersions {
		if v == version {
			return true
		}
	}
	return false
}

// GraphBase is the path prefix shared by a release's files in dir.
func GraphBase(dir, version string) string {
	return filepath.Join(dir, version+"-domain")
}

// RequiredFiles lists the files a release must provide.
func RequiredFiles(version string) []string {
	return []string{
		version + "-domain-vertices.txt.gz",
		version + "-domain.graph",
		version + "-domain.properties",
		version + "-domain-t.graph",
		version + "-domain-t.properties",
		version + "-domain.stats",
	}
}

// OffsetFiles lists the index files built locally after download.
func OffsetFiles(version string) []string {
	return []string{
		version + "-domain.offsets",
		version + "-domain-t.offsets",
	}
}

// VerticesFile is the gzip'd vertex list the loader imports.
func VerticesFile(version string) string {
	return version + "-domain-vertices.txt.gz"
}

// DownloadURL returns the source URL of one release file.
func DownloadURL(version, file string) string {
	return baseURL + "/" + version + "/domain/" + file
}

// CheckArtifacts reports whether every required file is in dir.
func CheckArtifacts(dir, version string) (bool, []string) {
	return checkFiles(dir, RequiredFiles(version))
}

// CheckOffsets reports whether the offset files have been built.
func CheckOffsets(dir, version string) (bool, []string) {
	return checkFiles(dir, OffsetFiles(version))
}

// DefaultDataDir is ~/.ccgraph/data, or a relative fallback without a home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ccgraph", "data")
	}
	return filepath.Join(home, ".ccgraph", "data")
}

// DefaultStorePath is where the imported sqlite snapshot for version lives.
func DefaultStorePath(dir, version string) string {
	return filepath.Join(dir, version+".db")
}

func checkFiles(dir string, files []string) (bool, []string) {
	var missing []string
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	return len(missing) == 0, missing
}
