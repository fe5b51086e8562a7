package health

import (
	"fmt"
	"strings"
)

// Theme groups the factors evaluated together.
type Theme struct {
	Name        string
	FullName    string
	Description string
	Entries     []ThemeEntry
}

// ThemeEntry pairs a factor with its threshold. Threshold is empty for
// factors that are reported but not judged.
type ThemeEntry struct {
	Factor    string
	Threshold string
	Index     string
}

// Catalog declares factors, thresholds and themes.
type Catalog struct {
	factors    map[string]Factor
	thresholds map[string]Threshold
	themes     []Theme
}

// NewCatalog validates and indexes the given declarations. Every theme
// entry must reference declared names.
func NewCatalog(factors []Factor, thresholds []Threshold, themes []Theme) (*Catalog, error) {
	c := &Catalog{
		factors:    make(map[string]Factor, len(factors)),
		thresholds: make(map[string]Threshold, len(thresholds)),
		themes:     themes,
	}
	for _, f := range factors {
		if _, dup := c.factors[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFactor, f.Name)
		}
		c.factors[f.Name] = f
	}
	for _, t := range thresholds {
		if _, dup := c.thresholds[t.Name]; dup {
			return nil, fmt.Errorf("%w: threshold %s", ErrDuplicateFactor, t.Name)
		}
		c.thresholds[t.Name] = t
	}
	for _, th := range themes {
		for _, e := range th.Entries {
			if _, ok := c.factors[e.Factor]; !ok {
				return nil, fmt.Errorf("%w: %s in theme %s", ErrUnknownFactor, e.Factor, th.Name)
			}
			if _, ok := c.thresholds[e.Threshold]; e.Threshold != "" && !ok {
				return nil, fmt.Errorf("%w: threshold %s in theme %s", ErrUnknownFactor, e.Threshold, th.Name)
			}
		}
	}
	return c, nil
}

// Factor looks up a factor by name.
func (c *Catalog) Factor(name string) (Factor, bool) {
	f, ok := c.factors[name]
	return f, ok
}

// Threshold looks up a threshold by name.
func (c *Catalog) Threshold(name string) (Threshold, bool) {
	t, ok := c.thresholds[name]
	return t, ok
}

// Themes returns the declared themes in order.
func (c *Catalog) Themes() []Theme {
	return append([]Theme(nil), c.themes...)
}

// Requests expands a theme into evaluation requests for repository. An
// empty theme name expands every theme.
func (c *Catalog) Requests(theme, repository string) ([]HealthRequest, error) {
	var out []HealthRequest
	found := false
	for _, th := range c.themes {
		if theme != "" && !strings.EqualFold(th.Name, theme) {
			continue
		}
		found = true
		for _, e := range th.Entries {
			out = append(out, HealthRequest{
				Theme:           th.Name,
				Factor:          e.Factor,
				FactorThreshold: e.Threshold,
				Index:           e.Index,
				Repository:      repository,
			})
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTheme, theme)
	}
	return out, nil
}

// Theme names of the default catalog.
const (
	ThemeGitHubHealth    = "github_health"
	ThemeCommunityHealth = "community_health"
)

// Factor names of the default catalog.
const (
	FactorUntriagedIssues          = "UNTRIAGED_ISSUES"
	FactorUntriagedIssuesThirty    = "UNTRIAGED_ISSUES_GREATER_THAN_THIRTY_DAYS"
	FactorIssuesNotRespondedThirty = "ISSUES_NOT_RESPONDED_THIRTY_DAYS"
	FactorPullsNotRespondedThirty  = "PRS_NOT_RESPONDED_THIRTY_DAYS"
	FactorGitHubAudit              = "GITHUB_AUDIT"
	FactorIssuesCreated            = "TOTAL_GITHUB_ISSUES_CREATED"
	FactorIssuesClosed             = "GITHUB_CLOSED_ISSUES"
	FactorPullsCreated             = "TOTAL_GITHUB_PULLS_CREATED"
	FactorPullsMerged              = "TOTAL_GITHUB_PULLS_MERGED"
	FactorPullComments             = "TOTAL_GITHUB_PULL_COMMENTS"
)

// DefaultCatalog returns the stock GitHub and community health themes.
func DefaultCatalog() *Catalog {
	issueBands := Bands{Absolute: 1, Ratio: 0.5}
	factors := []Factor{
		{Name: FactorUntriagedIssues, FullName: "Untriaged issues",
			Description: "The total number of issues labeled as untriaged in the repository.",
			Domain:      DomainIssues, Polarity: LowerIsBetter, Bands: issueBands, Metric: "Untriaged Issues"},
		{Name: FactorUntriagedIssuesThirty, FullName: "Untriaged issues greater than 30 days",
			Description: "Untriaged issues older than 30 days.",
			Domain:      DomainIssues, Polarity: LowerIsBetter, Bands: issueBands, Metric: "Untriaged Issues Older Than 30 Days"},
		{Name: FactorIssuesNotRespondedThirty, FullName: "Issues not responded for 30 days",
			Description: "Issues older than 30 days without any comment.",
			Domain:      DomainIssues, Polarity: LowerIsBetter, Bands: issueBands, Metric: "Issues Not Responded 30 Days"},
		{Name: FactorPullsNotRespondedThirty, FullName: "Pull Requests not responded for 30 days",
			Description: "Pull requests older than 30 days without any comment.",
			Domain:      DomainPulls, Polarity: LowerIsBetter, Bands: issueBands, Metric: "Uncommented Pull Requests"},
		{Name: FactorGitHubAudit, FullName: "GitHub Audit",
			Description: "Repository security audit status: 1 means non-compliant, 0 compliant.",
			Domain:      DomainAudit, Polarity: LowerIsBetter, Metric: "GitHub Audit Failures"},
		{Name: FactorIssuesCreated, FullName: "Total issues created", Domain: DomainIssues,
			Polarity: HigherIsBetter, Metric: "Created Issues"},
		{Name: FactorIssuesClosed, FullName: "Total issues closed", Domain: DomainIssues,
			Polarity: HigherIsBetter, Metric: "Closed Issues"},
		{Name: FactorPullsCreated, FullName: "Total pull requests created", Domain: DomainPulls,
			Polarity: HigherIsBetter, Metric: "Created Pull Requests"},
		{Name: FactorPullsMerged, FullName: "Total pull requests merged", Domain: DomainPulls,
			Polarity: HigherIsBetter, Metric: "Pull Requests Merged"},
		{Name: FactorPullComments, FullName: "Total pull request comments", Domain: DomainPulls,
			Polarity: HigherIsBetter, Metric: "Pull Comments"},
	}
	thresholds := []Threshold{
		{Name: FactorUntriagedIssues, FullName: "Number of Untriaged issues",
			Domain: DomainIssues, Fraction: 0.05, BaseMetric: "Created Issues"},
		{Name: FactorUntriagedIssuesThirty, FullName: "Number of Untriaged issues greater than 30 days",
			Domain: DomainIssues, Fraction: 0.03, BaseMetric: "Created Issues"},
		{Name: FactorIssuesNotRespondedThirty, FullName: "Number of issues not responded for 30 days",
			Domain: DomainIssues, Fraction: 0.02, BaseMetric: "Created Issues"},
		{Name: FactorPullsNotRespondedThirty, FullName: "Number of PRs not responded for 30 days",
			Domain: DomainPulls, Fraction: 0.02, BaseMetric: "Created Pull Requests"},
		{Name: FactorGitHubAudit, FullName: "GitHub Audit", Domain: DomainAudit, Fixed: 0},
	}
	themes := []Theme{
		{Name: ThemeGitHubHealth, FullName: "GitHub Health", Description: "Repo overall GitHub data",
			Entries: []ThemeEntry{
				{Factor: FactorGitHubAudit, Threshold: FactorGitHubAudit, Index: "github_audit"},
				{Factor: FactorUntriagedIssues, Threshold: FactorUntriagedIssues, Index: "github_issues"},
				{Factor: FactorUntriagedIssuesThirty, Threshold: FactorUntriagedIssuesThirty, Index: "github_issues"},
				{Factor: FactorIssuesNotRespondedThirty, Threshold: FactorIssuesNotRespondedThirty, Index: "github_issues"},
				{Factor: FactorPullsNotRespondedThirty, Threshold: FactorPullsNotRespondedThirty, Index: "github_pulls"},
			}},
		{Name: ThemeCommunityHealth, FullName: "Community Health", Description: "Repo overall community metrics",
			Entries: []ThemeEntry{
				{Factor: FactorIssuesCreated, Index: "github_issues"},
				{Factor: FactorIssuesClosed, Index: "github_issues"},
				{Factor: FactorPullsCreated, Index: "github_pulls"},
				{Factor: FactorPullsMerged, Index: "github_pulls"},
				{Factor: FactorPullComments, Index: "github_pulls"},
			}},
	}
	c, err := NewCatalog(factors, thresholds, themes)
	if err != nil {
		panic(err)
	}
	return c
}
