package nexusrpc

// VersionMajor, VersionMinor and VersionPatch are returned by VersionGet;
// bump VersionMinor for wire-compatible additions, VersionMajor when the
// framing or header layout changes.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// VersionGet implements the top-level version_get() operation.
func VersionGet() (major, minor, patch int) {
	return VersionMajor, VersionMinor, VersionPatch
}
