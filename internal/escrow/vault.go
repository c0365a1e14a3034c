// Package escrow derives campaign escrow balances and holds the only
// capability allowed to move value out of them.
package escrow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"influnest/internal/ledger"
	"influnest/internal/models"

	"github.com/stellar/go/strkey"
)

const vaultSeed = "campaign"

// Vault is the custodial balance owned by a single campaign. Its address is
// derived from the campaign key, so every party can compute it but only the
// Custodian can authorize a debit from it.
type Vault struct {
	Campaign models.CampaignKey
	Address  models.Identity
}

// VaultFor derives the vault of a campaign as the contract address of
// sha256("campaign" || influencer public key || created_at little endian)
func VaultFor(key models.CampaignKey) (Vault, error) {
	pub, err := key.Influencer.PublicKey()
	if err != nil {
		return Vault{}, err
	}

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(key.CreatedAt))

	h := sha256.New()
	h.Write([]byte(vaultSeed))
	h.Write(pub)
	h.Write(ts[:])

	address, err := strkey.Encode(strkey.VersionByteContract, h.Sum(nil))
	if err != nil {
		return Vault{}, fmt.Errorf("failed to encode vault address: %w", err)
	}

	return Vault{Campaign: key, Address: models.Identity(address)}, nil
}

// Custodian moves value into and out of campaign vaults
type Custodian struct {
	transfers ledger.ValueTransfer
}

// NewCustodian wraps the value transfer port
func NewCustodian(transfers ledger.ValueTransfer) *Custodian {
	return &Custodian{transfers: transfers}
}

// Deposit moves amount from a funder's balance into the vault, authorized by
// the funder
func (c *Custodian) Deposit(ctx context.Context, v Vault, from models.Identity, amount uint64) error {
	return c.transfers.Transfer(ctx, ledger.Transfer{
		From:      from,
		To:        v.Address,
		Amount:    amount,
		Authority: from,
		Reference: v.Campaign.String(),
	})
}

// Release moves amount out of the vault. The vault itself is the authority.
func (c *Custodian) Release(ctx context.Context, v Vault, to models.Identity, amount uint64) error {
	return c.transfers.Transfer(ctx, ledger.Transfer{
		From:      v.Address,
		To:        to,
		Amount:    amount,
		Authority: v.Address,
		Reference: v.Campaign.String(),
	})
}
