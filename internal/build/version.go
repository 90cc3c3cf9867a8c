package build

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

func IsDev() bool {
	return Version == "dev"
}

// UserAgent is sent with every request to the monitoring API so that
// traffic from different builds can be told apart in the service logs.
func UserAgent() string {
	if IsDev() {
		return "scopesync/dev"
	}
	return "scopesync/" + Version + " (" + Commit + ")"
}

func CLIBinaryName() string {
	if IsDev() {
		return "dscopectl"
	}
	return "scopectl"
}
