package bridge

import (
	"fmt"
	"log/slog"

	MapSet "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/config"
	"crosswatcher/utils"
)

const DefaultTokenMappingURL = "https://api-polygon-tokens.polygon.technology/tokenlists/mapped.tokenlist.json"

// Legacy child tokens that predate the current mapping list. A round
// trip may end in one of these even though the registry no longer
// returns them; WETH is the only known case.
var legacyChildTokens = map[common.Address][]common.Address{
	// WETH
	common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"): {
		common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"),
		common.HexToAddress("0xAe740d42E4ff0C5086b2b5b5d149eB2F9e1A754F"),
	},
}

// TokenMappingNotFoundError signals that the registry has no Polygon
// child for the given root token.
type TokenMappingNotFoundError struct {
	Token common.Address
}

func (e *TokenMappingNotFoundError) Error() string {
	return fmt.Sprintf("no mapped token found for %s", e.Token.Hex())
}

type tokenList struct {
	Tokens []tokenEntry `json:"tokens"`
}

type tokenEntry struct {
	OriginTokenAddress string         `json:"originTokenAddress"`
	WrappedTokens      []wrappedToken `json:"wrappedTokens"`
}

type wrappedToken struct {
	ChainID             int    `json:"chainId"`
	WrappedTokenAddress string `json:"wrappedTokenAddress"`
}

// Registry maps Ethereum root tokens to their Polygon child tokens. The
// mapping list is fetched once at construction and read-only afterwards,
// so concurrent lookups are safe.
type Registry struct {
	childByRoot map[common.Address]common.Address
}

func NewRegistry(logger *slog.Logger) (*Registry, error) {
	var list tokenList
	err := utils.GetUrlResponseWithRetry(DefaultTokenMappingURL, nil, &list, config.DefaultRetryTimes, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token mapping list: %w", err)
	}
	return newRegistryFromList(list), nil
}

func newRegistryFromList(list tokenList) *Registry {
	childByRoot := make(map[common.Address]common.Address, len(list.Tokens))
	for _, entry := range list.Tokens {
		root := common.HexToAddress(entry.OriginTokenAddress)
		for _, wrapped := range entry.WrappedTokens {
			if wrapped.ChainID == config.POLYGON_CHAIN_ID {
				childByRoot[root] = common.HexToAddress(wrapped.WrappedTokenAddress)
				break
			}
		}
	}
	return &Registry{childByRoot: childByRoot}
}

// MappedToken returns the primary Polygon child of the root token.
func (r *Registry) MappedToken(root common.Address) (common.Address, error) {
	child, ok := r.childByRoot[root]
	if !ok {
		return common.Address{}, &TokenMappingNotFoundError{Token: root}
	}
	return child, nil
}

// ExpectedChildTokens returns every Polygon token a round trip starting
// from the root may legitimately end in: the primary mapping plus any
// pinned legacy children.
func (r *Registry) ExpectedChildTokens(root common.Address) (MapSet.Set[common.Address], error) {
	child, err := r.MappedToken(root)
	if err != nil {
		return nil, err
	}
	expected := MapSet.NewSet(child)
	expected.Append(legacyChildTokens[root]...)
	return expected, nil
}
