package release

// Manifest describes the archives produced by one release run.
type Manifest struct {
	// Program is the released program name.
	Program string `yaml:"program"`
	// Version is the discovered "<major>.<minor>" version.
	Version string `yaml:"version"`
	// Archives lists the placed archives in target order.
	Archives []ManifestEntry `yaml:"archives"`
}

// ManifestEntry describes one placed archive.
type ManifestEntry struct {
	// File is the archive filename inside the distribution directory.
	File string `yaml:"file"`
	// OS is the target GOOS.
	OS string `yaml:"os"`
	// Arch is the target GOARCH.
	Arch string `yaml:"arch"`
	// Format is the archive container.
	Format Format `yaml:"format"`
	// Checksum is the base64-encoded SHA-512 of the archive.
	Checksum string `yaml:"checksum"`
}

// NewManifest produces an empty manifest for program at version v.
func NewManifest(program string, v Version) *Manifest {
	return &Manifest{
		Program: program,
		Version: v.String(),
	}
}

// Filename returns "<program>-<version>-release.yaml".
func (m *Manifest) Filename() string {
	return m.Program + "-" + m.Version + "-release.yaml"
}
