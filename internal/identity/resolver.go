package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Resolver turns a DID URL into its document.
type Resolver interface {
	Resolve(ctx context.Context, didURL string) (DIDDocument, error)
}

// DirectoryResolver resolves DIDs owned by the local directory. It builds
// the document from the directory's key material, including the
// blockchainAccountId shape the revocation registry tooling expects.
type DirectoryResolver struct {
	directory Directory
	chainID   int64
}

func NewDirectoryResolver(directory Directory, chainID int64) *DirectoryResolver {
	return &DirectoryResolver{directory: directory, chainID: chainID}
}

func (r *DirectoryResolver) Resolve(ctx context.Context, didURL string) (DIDDocument, error) {
	did, _, _ := strings.Cut(didURL, "#")
	id, err := r.directory.GetDID(ctx, did)
	if err != nil {
		return DIDDocument{}, err
	}

	doc := DIDDocument{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      id.DID,
		Service: id.Services,
	}
	for _, key := range id.Keys {
		vm := VerificationMethod{
			ID:           key.KID,
			Type:         "EcdsaSecp256k1RecoveryMethod2020",
			Controller:   id.DID,
			PublicKeyHex: key.PublicKeyHex,
		}
		if addr, err := EthereumAddress(key.PublicKeyHex); err == nil {
			vm.BlockchainAccountID = fmt.Sprintf("%s@eip155:%d", addr, r.chainID)
		}
		doc.VerificationMethod = append(doc.VerificationMethod, vm)
		doc.Authentication = append(doc.Authentication, key.KID)
		doc.AssertionMethod = append(doc.AssertionMethod, key.KID)
	}
	return doc, nil
}

// HTTPResolver resolves DIDs through a universal-resolver style endpoint
// (GET {base}/1.0/identifiers/{did}).
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, didURL string) (DIDDocument, error) {
	did, _, _ := strings.Cut(didURL, "#")
	endpoint := r.baseURL + "/1.0/identifiers/" + url.PathEscape(did)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DIDDocument{}, fmt.Errorf("build resolver request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return DIDDocument{}, fmt.Errorf("resolve %q: %w", did, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DIDDocument{}, fmt.Errorf("resolve %q: resolver returned %s", did, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DIDDocument{}, fmt.Errorf("read resolver response: %w", err)
	}

	// Universal resolvers wrap the document; plain resolvers return it bare.
	var wrapped struct {
		DIDDocument *DIDDocument `json:"didDocument"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.DIDDocument != nil {
		return *wrapped.DIDDocument, nil
	}
	var doc DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return DIDDocument{}, fmt.Errorf("decode DID document: %w", err)
	}
	return doc, nil
}

// FallbackResolver tries the local directory first and falls back to the
// remote resolver for foreign DIDs.
type FallbackResolver struct {
	primary  Resolver
	fallback Resolver
}

func NewFallbackResolver(primary, fallback Resolver) *FallbackResolver {
	return &FallbackResolver{primary: primary, fallback: fallback}
}

func (r *FallbackResolver) Resolve(ctx context.Context, didURL string) (DIDDocument, error) {
	doc, err := r.primary.Resolve(ctx, didURL)
	if err == nil {
		return doc, nil
	}
	if r.fallback == nil {
		return DIDDocument{}, err
	}
	return r.fallback.Resolve(ctx, didURL)
}
