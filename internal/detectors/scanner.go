package detectors

import (
	"strings"

	"logguardd/internal/types"
)

var scannerKeywords = []string{
	"nikto", "acunetix", "nessus", "openvas", "netsparker", "arachni", "wpscan",
	"dirbuster", "dirb", "nmap", "whatweb", "sqlmap", "commix",
}

// Scanner flags requests carrying a known web scanner fingerprint
func Scanner(evt *types.Event) (*types.Incident, error) {
	if evt.Kind != types.KindAccess {
		return nil, nil
	}

	hit, ok := firstMatch(searchText(evt.Raw, evt.UserAgent), scannerKeywords)
	if !ok {
		return nil, nil
	}

	return &types.Incident{
		AttackType:  "Web Scanner",
		Description: "Scanner signature detected: " + hit,
		Severity:    types.SeverityHigh,
		IP:          evt.IP,
		Evidence:    []types.Evidence{{Type: "signature", Value: hit}},
	}, nil
}

// NiktoDetector is the dedicated Nikto fingerprint check. The zero value is ready after Init.
type NiktoDetector struct {
	signature string
}

func (n *NiktoDetector) Init() error {
	n.signature = "nikto"
	return nil
}

func (n *NiktoDetector) Evaluate(evt *types.Event) (*types.Incident, error) {
	if evt.Kind != types.KindAccess || n.signature == "" {
		return nil, nil
	}
	if !strings.Contains(strings.ToLower(evt.Raw), n.signature) {
		return nil, nil
	}
	return &types.Incident{
		AttackType:  "Nikto Scanner",
		Description: "Nikto signature detected in access log",
		Severity:    types.SeverityHigh,
		IP:          evt.IP,
	}, nil
}
