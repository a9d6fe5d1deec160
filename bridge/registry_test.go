package bridge

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testList = tokenList{
	Tokens: []tokenEntry{
		{
			OriginTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			WrappedTokens: []wrappedToken{
				{ChainID: 1101, WrappedTokenAddress: "0x0000000000000000000000000000000000001101"},
				{ChainID: 137, WrappedTokenAddress: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"},
			},
		},
		{
			OriginTokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			WrappedTokens: []wrappedToken{
				{ChainID: 137, WrappedTokenAddress: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"},
			},
		},
		{
			// No Polygon mapping at all.
			OriginTokenAddress: "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			WrappedTokens: []wrappedToken{
				{ChainID: 1101, WrappedTokenAddress: "0x0000000000000000000000000000000000001102"},
			},
		},
	},
}

func TestMappedToken(t *testing.T) {
	registry := newRegistryFromList(testList)

	child, err := registry.MappedToken(common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	if err != nil {
		t.Fatalf("MappedToken error: %v", err)
	}
	if child != common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174") {
		t.Fatalf("wrong child token: %s", child.Hex())
	}

	// Only the chain-137 wrapped token counts.
	child, err = registry.MappedToken(common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"))
	if err != nil {
		t.Fatalf("MappedToken error: %v", err)
	}
	if child != common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619") {
		t.Fatalf("wrong child token: %s", child.Hex())
	}
}

func TestMappedTokenNotFound(t *testing.T) {
	registry := newRegistryFromList(testList)

	for _, root := range []common.Address{
		common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		common.HexToAddress("0x0000000000000000000000000000000000009999"),
	} {
		_, err := registry.MappedToken(root)
		var notFound *TokenMappingNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected TokenMappingNotFoundError for %s, got %v", root.Hex(), err)
		}
		if notFound.Token != root {
			t.Fatalf("error carries wrong token: %s", notFound.Token.Hex())
		}
	}
}

func TestExpectedChildTokensIncludesLegacy(t *testing.T) {
	registry := newRegistryFromList(testList)

	expected, err := registry.ExpectedChildTokens(common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"))
	if err != nil {
		t.Fatalf("ExpectedChildTokens error: %v", err)
	}
	if expected.Cardinality() != 2 {
		t.Fatalf("expected primary + legacy child, got %d tokens", expected.Cardinality())
	}
	if !expected.Contains(common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")) {
		t.Fatalf("primary child missing")
	}
	if !expected.Contains(common.HexToAddress("0xAe740d42E4ff0C5086b2b5b5d149eB2F9e1A754F")) {
		t.Fatalf("legacy child missing")
	}

	expected, err = registry.ExpectedChildTokens(common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	if err != nil {
		t.Fatalf("ExpectedChildTokens error: %v", err)
	}
	if expected.Cardinality() != 1 {
		t.Fatalf("token without legacy children must map to 1, got %d", expected.Cardinality())
	}
}
