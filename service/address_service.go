package service

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/tyler-smith/go-bip39"
)

const (
	coinTypeBTC = 0
	coinTypeETH = 60
)

// AddressService derives a fresh payment address per transaction from a
// single BIP39 mnemonic. Bitcoin uses P2PKH addresses; every other chain in
// the catalog settles on an EVM-style address.
type AddressService struct {
	master *hdkeychain.ExtendedKey
	repo   *repository.WalletAddressRepository
}

func NewAddressService(mnemonic string, repo *repository.WalletAddressRepository) (*AddressService, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid wallet mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return &AddressService{master: master, repo: repo}, nil
}

// NextAddress allocates the next unused derivation index for the chain and
// returns the encoded address plus its BIP44 path.
func (s *AddressService) NextAddress(ctx context.Context, chain string) (*model.WalletAddress, error) {
	index, err := s.repo.NextIndex(ctx, chain)
	if err != nil {
		return nil, err
	}

	coinType := uint32(coinTypeETH)
	if chain == model.ChainBTC {
		coinType = coinTypeBTC
	}

	key, err := s.deriveKey(coinType, index)
	if err != nil {
		return nil, err
	}

	var address string
	if chain == model.ChainBTC {
		address, err = btcAddress(key)
	} else {
		address, err = evmAddress(key)
	}
	if err != nil {
		return nil, err
	}

	addr := &model.WalletAddress{
		Chain:          chain,
		DerivationPath: fmt.Sprintf("m/44'/%d'/0'/0/%d", coinType, index),
		Address:        address,
	}
	if err := s.repo.Create(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

// deriveKey walks the BIP44 path m/44'/coinType'/0'/0/index.
func (s *AddressService) deriveKey(coinType, index uint32) (*hdkeychain.ExtendedKey, error) {
	key := s.master
	steps := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}
	var err error
	for _, step := range steps {
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("derive step %d: %w", step, err)
		}
	}
	return key, nil
}

func btcAddress(key *hdkeychain.ExtendedKey) (string, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), &chaincfg.MainNetParams)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func evmAddress(key *hdkeychain.ExtendedKey) (string, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	ecdsaPub, err := crypto.DecompressPubkey(pub.SerializeCompressed())
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*ecdsaPub).Hex(), nil
}
