package model

import "time"

// Maintainer is one entry of a repository's maintainer roster.
type Maintainer struct {
	Name        string `json:"name" koanf:"name" yaml:"name"`
	Login       string `json:"github_login" koanf:"github_login" yaml:"github_login"`
	Affiliation string `json:"affiliation" koanf:"affiliation" yaml:"affiliation"`
}

// MaintainerEngagement is the last-known activity of a maintainer. A zero
// LastEngaged means no activity was observed.
type MaintainerEngagement struct {
	EventType   string
	EventAction string
	LastEngaged time.Time
	Inactive    bool
}

// Engaged reports whether any activity was observed.
func (e MaintainerEngagement) Engaged() bool { return !e.LastEngaged.IsZero() }
