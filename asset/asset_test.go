package asset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rollupclient/coretypes"
	"rollupclient/digest"
)

func testFaucet(suffix uint64, t coretypes.AccountType) coretypes.AccountID {
	return coretypes.NewAccountID(0, suffix, coretypes.StorageModePublic, t)
}

func TestVaultAddMergesFungibleAmountsOfTheSameFaucet(t *testing.T) {
	faucet := testFaucet(1, coretypes.AccountTypeFungibleFaucet)
	v := NewVault()
	a1, err := NewFungible(faucet, 10)
	require.NoError(t, err)
	a2, err := NewFungible(faucet, 15)
	require.NoError(t, err)
	require.NoError(t, v.Add(a1))
	require.NoError(t, v.Add(a2))
	require.Equal(t, uint64(25), v.FungibleBalance(faucet))
}

func TestVaultAddRejectsAmountOverflow(t *testing.T) {
	faucet := testFaucet(2, coretypes.AccountTypeFungibleFaucet)
	v := NewVault()
	a1, err := NewFungible(faucet, math.MaxUint64)
	require.NoError(t, err)
	a2, err := NewFungible(faucet, 1)
	require.NoError(t, err)
	require.NoError(t, v.Add(a1))
	require.Error(t, v.Add(a2), "expected Add to reject an amount overflowing uint64")
	require.Equal(t, uint64(math.MaxUint64), v.FungibleBalance(faucet), "balance unchanged after a rejected overflow")
}

func TestVaultRemoveRejectsInsufficientBalance(t *testing.T) {
	faucet := testFaucet(3, coretypes.AccountTypeFungibleFaucet)
	v := NewVault()
	a, err := NewFungible(faucet, 5)
	require.NoError(t, err)
	require.NoError(t, v.Add(a))
	over, err := NewFungible(faucet, 6)
	require.NoError(t, err)
	require.Error(t, v.Remove(over), "expected Remove to reject an amount exceeding the held balance")
}

func TestVaultMergeCombinesTwoVaults(t *testing.T) {
	faucetA := testFaucet(4, coretypes.AccountTypeFungibleFaucet)
	faucetB := testFaucet(5, coretypes.AccountTypeNonFungibleFaucet)

	v := NewVault()
	aa, err := NewFungible(faucetA, 3)
	require.NoError(t, err)
	require.NoError(t, v.Add(aa))

	other := NewVault()
	ab, err := NewFungible(faucetA, 4)
	require.NoError(t, err)
	nft, err := NewNonFungible(faucetB, digest.Sum([]byte("token")))
	require.NoError(t, err)
	require.NoError(t, other.Add(ab))
	require.NoError(t, other.Add(nft))

	require.NoError(t, v.Merge(other))
	require.Equal(t, uint64(7), v.FungibleBalance(faucetA))
	require.Len(t, v.Assets(), 2)
}
