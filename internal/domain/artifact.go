package domain

// BuildArtifact is the directory tree a build leaves behind. It is read, never modified.
type BuildArtifact struct {
	Environment Environment
	Root        string
}

// Deployment is the outcome of building and publishing one environment.
type Deployment struct {
	Environment Environment `json:"environment"`
	Bucket      string      `json:"bucket,omitempty"`
	URL         string      `json:"url,omitempty"`
	Objects     int         `json:"objects"`
	Skipped     bool        `json:"skipped,omitempty"`
}
