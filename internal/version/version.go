// Package version holds build metadata set via -ldflags.
package version

var (
	Version = "dev"
	Commit  = "unknown"
)

// UserAgent identifies this program to upstream APIs.
func UserAgent() string {
	return "soundalike/" + Version + " (+https://github.com/sydlexius/soundalike)"
}
