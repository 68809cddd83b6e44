package tunnel

import (
	"fmt"
	"strings"

	"tunneld/config"
)

// defaultEndpointFormat is the templated proxy endpoint hostname; the
// single verb is the region.
const defaultEndpointFormat = "data.tunneling.iot.%s.amazonaws.com"

// cnPartitionPrefix marks regions in the isolated China partition,
// whose endpoints carry an extra top-level suffix.
const cnPartitionPrefix = "cn-"

// Params carries everything a session needs to connect.  Built by
// NewParams and owned by the created session from then on.
type Params struct {
	AccessToken        string
	Region             string
	EndpointHost       string
	DestinationAddress string
	DestinationPort    int

	// OnClosed is invoked exactly once when the session ends, with the
	// session's own handle.
	OnClosed func(id ID)
}

// Endpoint derives the proxy endpoint host for a region.  An operator
// override wins verbatim; otherwise the templated hostname is used,
// with ".cn" appended for China-partition regions (e.g. "cn-north-1",
// "cn-northwest-1").
func Endpoint(region, override string) string {
	if override != "" {
		return override
	}
	endpoint := fmt.Sprintf(defaultEndpointFormat, region)
	if strings.HasPrefix(region, cnPartitionPrefix) {
		endpoint += ".cn"
	}
	return endpoint
}

// NewParams assembles session parameters from validated, resolved
// values.  Pure except for the config read.
func NewParams(cfg *config.Config, accessToken, region, address string, port int) Params {
	return Params{
		AccessToken:        accessToken,
		Region:             region,
		EndpointHost:       Endpoint(region, cfg.EndpointOverride),
		DestinationAddress: address,
		DestinationPort:    port,
	}
}
