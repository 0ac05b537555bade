// Package region holds the fixed catalogue of S3 region codes a submission
// may target. The order is significant: the first entry is the default
// offered by every trigger surface.
package region

// Region is a provider region code paired with a human-readable label.
type Region struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// String renders the region the way the form dropdown shows it.
func (r Region) String() string {
	return r.Label + " (" + r.Code + ")"
}

var catalogue = []Region{
	{Code: "eu-west-1", Label: "Europe (Ireland)"},
	{Code: "eu-west-2", Label: "Europe (London)"},
	{Code: "eu-west-3", Label: "Europe (Paris)"},
	{Code: "eu-central-1", Label: "Europe (Frankfurt)"},
	{Code: "eu-north-1", Label: "Europe (Stockholm)"},
	{Code: "eu-south-1", Label: "Europe (Milan)"},
	{Code: "us-east-1", Label: "US East (N. Virginia)"},
	{Code: "us-east-2", Label: "US East (Ohio)"},
	{Code: "us-west-1", Label: "US West (N. California)"},
	{Code: "us-west-2", Label: "US West (Oregon)"},
	{Code: "ca-central-1", Label: "Canada (Central)"},
	{Code: "ap-south-1", Label: "Asia Pacific (Mumbai)"},
	{Code: "ap-northeast-1", Label: "Asia Pacific (Tokyo)"},
	{Code: "ap-northeast-2", Label: "Asia Pacific (Seoul)"},
	{Code: "ap-northeast-3", Label: "Asia Pacific (Osaka)"},
	{Code: "ap-southeast-1", Label: "Asia Pacific (Singapore)"},
	{Code: "ap-southeast-2", Label: "Asia Pacific (Sydney)"},
	{Code: "ap-east-1", Label: "Asia Pacific (Hong Kong)"},
	{Code: "sa-east-1", Label: "South America (São Paulo)"},
	{Code: "af-south-1", Label: "Africa (Cape Town)"},
	{Code: "me-south-1", Label: "Middle East (Bahrain)"},
}

// All returns a copy of the catalogue in display order.
func All() []Region {
	out := make([]Region, len(catalogue))
	copy(out, catalogue)
	return out
}

// Default returns the first catalogue entry.
func Default() Region {
	return catalogue[0]
}

// Lookup finds the region with the given code.
func Lookup(code string) (Region, bool) {
	for _, r := range catalogue {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// Valid reports whether code is a known region.
func Valid(code string) bool {
	_, ok := Lookup(code)
	return ok
}
