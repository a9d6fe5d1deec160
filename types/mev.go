package types

import (
	"fmt"
	"strings"
)

// MevType classifies a transaction according to the external MEV
// classification feed.
type MevType uint8

const (
	MevTypeNone MevType = iota
	MevTypeSandwich
	MevTypeBackrun
	MevTypeLiquid
	MevTypeArb
	MevTypeFrontrun
	MevTypeSwap
)

// Explicit name table for the feed's type strings. Unknown names must
// fail loudly instead of being silently mapped.
var mevTypeByName = map[string]MevType{
	"none":     MevTypeNone,
	"sandwich": MevTypeSandwich,
	"backrun":  MevTypeBackrun,
	"liquid":   MevTypeLiquid,
	"arb":      MevTypeArb,
	"frontrun": MevTypeFrontrun,
	"swap":     MevTypeSwap,
}

var mevTypeNames = func() map[MevType]string {
	names := make(map[MevType]string, len(mevTypeByName))
	for name, t := range mevTypeByName {
		names[t] = name
	}
	return names
}()

// MevTypeFromName resolves a feed type string to its MevType.
func MevTypeFromName(name string) (MevType, error) {
	t, ok := mevTypeByName[strings.ToLower(name)]
	if !ok {
		return MevTypeNone, fmt.Errorf("unknown MEV type name %q", name)
	}
	return t, nil
}

func (t MevType) String() string {
	if name, ok := mevTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MevType(%d)", uint8(t))
}

// BridgeInteraction describes whether and in which direction a
// transaction touched the Polygon PoS bridge.
type BridgeInteraction uint8

const (
	BridgeInteractionNone BridgeInteraction = iota
	BridgeFromEthereum
	BridgeToEthereum
)

// BridgeInteractionFromName resolves a stored interaction name.
func BridgeInteractionFromName(name string) (BridgeInteraction, error) {
	switch strings.ToLower(name) {
	case "none":
		return BridgeInteractionNone, nil
	case "from_ethereum":
		return BridgeFromEthereum, nil
	case "to_ethereum":
		return BridgeToEthereum, nil
	}
	return BridgeInteractionNone, fmt.Errorf("unknown bridge interaction name %q", name)
}

func (b BridgeInteraction) String() string {
	switch b {
	case BridgeInteractionNone:
		return "none"
	case BridgeFromEthereum:
		return "from_ethereum"
	case BridgeToEthereum:
		return "to_ethereum"
	}
	return fmt.Sprintf("BridgeInteraction(%d)", uint8(b))
}
