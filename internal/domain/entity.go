package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Chain identifies the blockchain an entity lives on. Solana is the only
// supported chain; the field exists so registry data stays unambiguous if
// other chains are ever ingested.
type Chain string

const ChainSolana Chain = "solana"

// EntityType classifies what kind of on-chain actor an address represents.
type EntityType string

const (
	EntityTypeWallet EntityType = "wallet"
	EntityTypeToken  EntityType = "token"
	EntityTypeDev    EntityType = "dev"
	EntityTypeKOL    EntityType = "kol"
)

// ParseEntityType validates and returns an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(s); t {
	case EntityTypeWallet, EntityTypeToken, EntityTypeDev, EntityTypeKOL:
		return t, nil
	default:
		return "", fmt.Errorf("unknown entity type: %q", s)
	}
}

// Entity is a chain address under observation. Unique on
// (chain, type, address). Written only by ingestion; the query path reads.
type Entity struct {
	ID          uuid.UUID
	Chain       Chain
	Type        EntityType
	Address     string
	DisplayName string
	CreatedAt   time.Time
}

// solanaPubKeyLen is the decoded length of an ed25519 public key.
const solanaPubKeyLen = 32

// ValidateAddress checks that an address is a well-formed Solana public key
// (base58, 32 bytes decoded).
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is empty")
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("address is not valid base58: %w", err)
	}
	if len(decoded) != solanaPubKeyLen {
		return fmt.Errorf("address decodes to %d bytes, want %d", len(decoded), solanaPubKeyLen)
	}
	return nil
}
