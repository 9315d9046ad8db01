// Package chains handles chain-agnostic network identifiers in CAIP-2
// form, e.g. "eip155:8453" for Base. Only the eip155 namespace is
// currently verifiable, but identifiers from other namespaces still
// parse so intents for them fail with a clear mismatch instead of a
// syntax error.
package chains

import (
	"fmt"
	"math/big"
	"strings"
)

// NamespaceEIP155 is the CAIP-2 namespace for EVM networks.
const NamespaceEIP155 = "eip155"

// NetworkID is a parsed CAIP-2 identifier.
type NetworkID struct {
	Namespace string
	Reference string
}

// chainNames maps well-known EVM chain IDs to their names
var chainNames = map[int64]string{
	1:        "ETHEREUM",
	137:      "POLYGON",
	42161:    "ARBITRUM",
	43114:    "AVALANCHE",
	56:       "BSC",
	7000:     "ZETACHAIN",
	8453:     "BASE",
	10:       "OPTIMISM",
	11155111: "SEPOLIA",
	84532:    "BASE_SEPOLIA",
}

// Parse splits a CAIP-2 identifier into namespace and reference. It
// rejects empty parts and identifiers with more or fewer than two
// colon-separated segments.
func Parse(s string) (NetworkID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return NetworkID{}, fmt.Errorf("invalid network identifier %q, expected <namespace>:<reference>", s)
	}
	return NetworkID{Namespace: parts[0], Reference: parts[1]}, nil
}

// MustParse is Parse for package-level defaults known to be valid.
func MustParse(s string) NetworkID {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String renders the identifier back to its canonical CAIP-2 form.
func (n NetworkID) String() string {
	return n.Namespace + ":" + n.Reference
}

// IsEVM reports whether the network lives in the eip155 namespace.
func (n NetworkID) IsEVM() bool {
	return n.Namespace == NamespaceEIP155
}

// EVMChainID returns the numeric chain ID for an eip155 network.
func (n NetworkID) EVMChainID() (*big.Int, error) {
	if !n.IsEVM() {
		return nil, fmt.Errorf("network %s is not an eip155 network", n)
	}
	id, ok := new(big.Int).SetString(n.Reference, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid eip155 chain reference %q, must be a positive integer", n.Reference)
	}
	return id, nil
}

// FromEVMChainID builds the CAIP-2 identifier for a numeric EVM chain ID.
func FromEVMChainID(id *big.Int) NetworkID {
	return NetworkID{Namespace: NamespaceEIP155, Reference: id.String()}
}

// Name returns the display name of the network for a given identifier,
// falling back to the raw identifier for chains we have no name for.
func (n NetworkID) Name() string {
	id, err := n.EVMChainID()
	if err != nil {
		return n.String()
	}
	name, exists := chainNames[id.Int64()]
	if !exists {
		return n.String()
	}
	return name
}
