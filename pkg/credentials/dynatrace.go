package credentials

import (
	"fmt"
	"strings"
)

// DynatraceAPIURLKey holds the environment API URL of a Dynatrace binding.
const DynatraceAPIURLKey = "apiurl"

const (
	dynatraceMetricsPath = "/v2/otlp/v1/metrics"
	dynatraceTracesPath  = "/v2/otlp/v1/traces"
)

// Dynatrace holds the API URL and token of a Dynatrace binding.
type Dynatrace struct {
	apiURL    string
	token     string
	tokenName string
}

// ParseDynatrace extracts the Dynatrace view. tokenName names the credential
// that carries the API token.
func ParseDynatrace(raw map[string]string, tokenName string) Dynatrace {
	return Dynatrace{
		apiURL:    strings.TrimRight(NormalizeEndpoint(raw[DynatraceAPIURLKey], "https"), "/"),
		token:     raw[tokenName],
		tokenName: tokenName,
	}
}

// APIURL returns the environment API URL without a trailing slash.
func (d Dynatrace) APIURL() string { return d.apiURL }

// Token returns the API token.
func (d Dynatrace) Token() string { return d.token }

// MetricsEndpoint returns the OTLP metrics ingest URL.
func (d Dynatrace) MetricsEndpoint() string { return d.apiURL + dynatraceMetricsPath }

// TracesEndpoint returns the OTLP traces ingest URL.
func (d Dynatrace) TracesEndpoint() string { return d.apiURL + dynatraceTracesPath }

// AuthorizationHeader returns the header value Dynatrace expects.
func (d Dynatrace) AuthorizationHeader() string { return "Api-Token " + d.token }

// Validate implements Set.
func (d Dynatrace) Validate() bool {
	return present(d.apiURL, d.token)
}

func (d Dynatrace) String() string {
	return fmt.Sprintf("Dynatrace{apiurl=%s, %s=%s}", d.apiURL, d.tokenName, mask(d.token))
}
