// Package gateway rewrites content-addressed metadata URIs into public HTTP
// gateway URLs and checks that they name a well-formed CID.
package gateway

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DefaultGateway is the public gateway used when none is configured.
const DefaultGateway = "https://ipfs.io/ipfs/"

const ipfsScheme = "ipfs://"

// ToGateway maps ipfs://X to gateway+X. Empty input yields "" and any other
// URI is returned unchanged.
func ToGateway(uri, gateway string) string {
	if uri == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(uri, ipfsScheme); ok {
		if gateway == "" {
			gateway = DefaultGateway
		}
		return gateway + rest
	}
	return uri
}

// Report describes one metadata URI.
type Report struct {
	URI        string `json:"uri"`
	GatewayURL string `json:"gateway_url"`
	IPFS       bool   `json:"ipfs"`
	CID        string `json:"cid,omitempty"`
	CIDVersion uint64 `json:"cid_version,omitempty"`
	Codec      string `json:"codec,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Path       string `json:"path,omitempty"`
	Problem    string `json:"problem,omitempty"`
}

// Valid reports whether the URI is an ipfs URI rooted at a decodable CID, or
// a non-ipfs URI (which is not inspected further).
func (r Report) Valid() bool {
	return r.Problem == ""
}

// Inspect resolves uri against gateway and, for ipfs URIs, decodes the leading
// path segment as a CID.
func Inspect(uri, gateway string) Report {
	report := Report{URI: uri, GatewayURL: ToGateway(uri, gateway)}
	if uri == "" {
		report.Problem = "empty uri"
		return report
	}
	rest, ok := strings.CutPrefix(uri, ipfsScheme)
	if !ok {
		return report
	}
	report.IPFS = true

	root, path, _ := strings.Cut(rest, "/")
	report.Path = path
	if root == "" {
		report.Problem = "missing cid"
		return report
	}
	parsed, err := cid.Decode(root)
	if err != nil {
		report.Problem = "invalid cid: " + err.Error()
		return report
	}
	prefix := parsed.Prefix()
	report.CID = parsed.String()
	report.CIDVersion = prefix.Version
	report.Codec = codecName(prefix.Codec)
	report.Hash = multihash.Codes[prefix.MhType]
	return report
}

func codecName(codec uint64) string {
	switch codec {
	case cid.Raw:
		return "raw"
	case cid.DagProtobuf:
		return "dag-pb"
	case cid.DagCBOR:
		return "dag-cbor"
	case cid.DagJSON:
		return "dag-json"
	default:
		return ""
	}
}
