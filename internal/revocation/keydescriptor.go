package revocation

import (
	"fmt"
	"strings"

	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/registry"
)

// legacyKeyType is the fixed key type the chain registry tooling matches on.
const legacyKeyType = "Secp256k1VerificationKey2018"

// LegacyKeyDescriptor reshapes a resolved DID document into the publicKey
// descriptor list the chain registry client still expects. The registry
// predates DID-core verification methods, so the first method's blockchain
// account is copied into an ethereumAddress field verbatim.
func LegacyKeyDescriptor(doc identity.DIDDocument) (registry.LegacyDIDDocument, error) {
	if len(doc.VerificationMethod) == 0 {
		return registry.LegacyDIDDocument{}, fmt.Errorf("DID document %q has no verification methods", doc.ID)
	}
	vm := doc.VerificationMethod[0]
	address := strings.SplitN(vm.BlockchainAccountID, "@", 2)[0]
	if address == "" {
		return registry.LegacyDIDDocument{}, fmt.Errorf("verification method %q carries no blockchain account", vm.ID)
	}
	return registry.LegacyDIDDocument{
		ID: doc.ID,
		PublicKey: []registry.LegacyPublicKey{
			{
				ID:              vm.ID + "#controller",
				Controller:      vm.ID,
				Type:            legacyKeyType,
				EthereumAddress: address,
			},
		},
	}, nil
}
