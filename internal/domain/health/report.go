package health

import "fmt"

// NoActionItems is the single action item of a fully healthy report.
const NoActionItems = "No Immediate Action Items"

// Result is one evaluated factor.
type Result struct {
	Request        HealthRequest  `json:"request"`
	FullName       string         `json:"full_name"`
	Observed       int64          `json:"observed"`
	Threshold      *int64         `json:"threshold"`
	Classification Classification `json:"classification"`
}

// ThemeReport is the verdict for one theme: the worst classification of its
// factors.
type ThemeReport struct {
	Theme          string         `json:"theme"`
	FullName       string         `json:"full_name"`
	Classification Classification `json:"classification"`
	Factors        []Result       `json:"factors"`
}

// Report is the health of one repository.
type Report struct {
	Repository  string        `json:"repository"`
	Date        string        `json:"date,omitempty"`
	Themes      []ThemeReport `json:"themes"`
	ActionItems []string      `json:"action_items"`
}

// BuildReport groups results by theme in catalog order and collects an
// action item for every factor that is not healthy.
func (c *Catalog) BuildReport(repository string, results []Result) Report {
	r := Report{Repository: repository}
	byTheme := make(map[string][]Result)
	for _, res := range results {
		byTheme[res.Request.Theme] = append(byTheme[res.Request.Theme], res)
	}
	for _, th := range c.themes {
		rs, ok := byTheme[th.Name]
		if !ok {
			continue
		}
		tr := ThemeReport{Theme: th.Name, FullName: th.FullName, Classification: NotApplicable, Factors: rs}
		for _, res := range rs {
			if res.Classification.severity() > tr.Classification.severity() {
				tr.Classification = res.Classification
			}
			if item, ok := actionItem(res); ok {
				r.ActionItems = append(r.ActionItems, item)
			}
		}
		r.Themes = append(r.Themes, tr)
	}
	if len(r.ActionItems) == 0 {
		r.ActionItems = []string{NoActionItems}
	}
	return r
}

func actionItem(res Result) (string, bool) {
	if res.Classification != AtRisk && res.Classification != Critical {
		return "", false
	}
	name := res.FullName
	if name == "" {
		name = res.Request.Factor
	}
	if res.Threshold == nil {
		return fmt.Sprintf("%s is %s: observed %d", name, res.Classification, res.Observed), true
	}
	return fmt.Sprintf("%s is %s: observed %d against threshold %d", name, res.Classification, res.Observed, *res.Threshold), true
}
