package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// statusRegistryABI is the EthrStatusRegistry2019 surface this client uses:
// revocations are keyed by (issuer account, credential digest) and recorded
// as the block number of the revoke call.
const statusRegistryABI = `[
	{"constant":true,"inputs":[{"name":"issuer","type":"address"},{"name":"digest","type":"bytes32"}],"name":"revoked","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"digest","type":"bytes32"}],"name":"revoke","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

// EthrStatusRegistry implements Client against the EthrStatusRegistry2019
// contract.
type EthrStatusRegistry struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
}

// NewEthrStatusRegistry dials the RPC endpoint and binds the registry
// contract address.
func NewEthrStatusRegistry(ctx context.Context, rpcURL, contractAddress string, chainID int64) (*EthrStatusRegistry, error) {
	if rpcURL == "" || contractAddress == "" {
		return nil, fmt.Errorf("registry RPC URL and contract address are required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial registry RPC: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(statusRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry ABI: %w", err)
	}
	return &EthrStatusRegistry{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		chainID:  big.NewInt(chainID),
	}, nil
}

// Digest computes the registry key for a proof token.
func Digest(proofToken string) [32]byte {
	return crypto.Keccak256Hash([]byte(proofToken))
}

func (r *EthrStatusRegistry) CheckStatus(ctx context.Context, proofToken string, doc LegacyDIDDocument) (bool, error) {
	if len(doc.PublicKey) == 0 || doc.PublicKey[0].EthereumAddress == "" {
		return false, fmt.Errorf("legacy DID document carries no ethereum account")
	}
	issuer := common.HexToAddress(doc.PublicKey[0].EthereumAddress)

	data, err := r.abi.Pack("revoked", issuer, Digest(proofToken))
	if err != nil {
		return false, fmt.Errorf("pack revoked call: %w", err)
	}

	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call status registry: %w", err)
	}

	values, err := r.abi.Unpack("revoked", out)
	if err != nil {
		return false, fmt.Errorf("unpack revoked result: %w", err)
	}
	block, ok := values[0].(*big.Int)
	if !ok {
		return false, fmt.Errorf("unexpected revoked result type %T", values[0])
	}
	return block.Sign() != 0, nil
}

func (r *EthrStatusRegistry) Revoke(ctx context.Context, proofToken string, signerKeyHex string, opts TxOptions) (string, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse signer key: %w", err)
	}
	from := crypto.PubkeyToAddress(privKey.PublicKey)

	nonce, err := r.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	data, err := r.abi.Pack("revoke", Digest(proofToken))
	if err != nil {
		return "", fmt.Errorf("pack revoke call: %w", err)
	}

	tx := types.NewTransaction(nonce, r.contract, big.NewInt(0), opts.GasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(r.chainID), privKey)
	if err != nil {
		return "", fmt.Errorf("sign revoke transaction: %w", err)
	}
	if err := r.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send revoke transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// Close releases the RPC connection.
func (r *EthrStatusRegistry) Close() {
	r.client.Close()
}
