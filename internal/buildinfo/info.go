package buildinfo

var (
	Version    = "v1.0.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

// UserAgent identifies this build in outbound request headers.
func UserAgent() string {
	return "cirrus-cli/" + Version
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/goodaegwang/cirrus",
		Service:    "Cirrus",
		Version:    Version,
		CommitHash: CommitHash,
	}
}
