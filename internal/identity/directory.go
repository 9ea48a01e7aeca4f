package identity

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

// Directory manages the DIDs this agent controls. Implementations must be
// safe for concurrent use; one logical directory exists per process.
type Directory interface {
	FindDIDs(ctx context.Context) ([]Identity, error)
	CreateDID(ctx context.Context) (Identity, error)
	DeleteDID(ctx context.Context, did string) (bool, error)
	GetDID(ctx context.Context, did string) (Identity, error)
	GetKey(ctx context.Context, kid string) (Key, error)
	AddService(ctx context.Context, did string, svc Service) error
}

// MemoryDirectory keeps identities in process memory. It mints did:ethr
// identifiers backed by secp256k1 keys, which is what the chain registry
// and the ES256K proof format expect.
type MemoryDirectory struct {
	mu         sync.RWMutex
	identities map[string]*Identity
	keys       map[string]Key
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		identities: make(map[string]*Identity),
		keys:       make(map[string]Key),
	}
}

func (d *MemoryDirectory) FindDIDs(ctx context.Context) ([]Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Identity, 0, len(d.identities))
	for _, id := range d.identities {
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	return out, nil
}

func (d *MemoryDirectory) CreateDID(ctx context.Context) (Identity, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return Identity{}, fmt.Errorf("generate secp256k1 key: %w", err)
	}

	pubCompressed := crypto.CompressPubkey(&priv.PublicKey)
	did := "did:ethr:0x" + hex.EncodeToString(pubCompressed)
	kid := did + "#controller"

	key := Key{
		KID:           kid,
		Type:          KeyTypeSecp256k1,
		PublicKeyHex:  hex.EncodeToString(pubCompressed),
		PrivateKeyHex: hex.EncodeToString(crypto.FromECDSA(priv)),
	}
	id := Identity{
		DID:             did,
		ControllerKeyID: kid,
		Keys:            []Key{key},
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[did] = &id
	d.keys[kid] = key
	return id, nil
}

func (d *MemoryDirectory) DeleteDID(ctx context.Context, did string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.identities[did]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	for _, k := range id.Keys {
		delete(d.keys, k.KID)
	}
	delete(d.identities, did)
	return true, nil
}

func (d *MemoryDirectory) GetDID(ctx context.Context, did string) (Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.identities[did]
	if !ok {
		return Identity{}, fmt.Errorf("identity %q: %w", did, sentinel.ErrNotFound)
	}
	return *id, nil
}

func (d *MemoryDirectory) GetKey(ctx context.Context, kid string) (Key, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[kid]
	if !ok {
		return Key{}, fmt.Errorf("key %q: %w", kid, sentinel.ErrNotFound)
	}
	return key, nil
}

func (d *MemoryDirectory) AddService(ctx context.Context, did string, svc Service) error {
	if svc.Type == "" || svc.ServiceEndpoint == "" {
		return fmt.Errorf("service type and endpoint are required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.identities[did]
	if !ok {
		return fmt.Errorf("identity %q: %w", did, sentinel.ErrNotFound)
	}
	if svc.ID == "" {
		svc.ID = fmt.Sprintf("%s#service-%d", did, len(id.Services)+1)
	}
	for _, existing := range id.Services {
		if existing.ID == svc.ID {
			return fmt.Errorf("service %q: %w", svc.ID, sentinel.ErrConflict)
		}
	}
	id.Services = append(id.Services, svc)
	return nil
}

// EthereumAddress derives the account address for a directory key.
func EthereumAddress(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("decode public key hex: %w", err)
	}
	pub, err := crypto.DecompressPubkey(raw)
	if err != nil {
		return "", fmt.Errorf("decompress public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
