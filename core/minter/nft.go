package minter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "nftminter/core/errors"
	"nftminter/core/events"
	"nftminter/sdk/contracts"
	"nftminter/sdk/wallet"
)

// FetchNftInfo reads the mint cap, price and stake token of a stake-to-mint
// NFT contract, plus the connected account's NFT balance.
func (m *Minter) FetchNftInfo(ctx context.Context, nftAddress common.Address) (NftInfo, error) {
	nft := contracts.NewTrollNFT(nftAddress, wallet.SessionCaller(m.session))
	capacity, err := nft.Cap(ctx)
	if err != nil {
		return NftInfo{}, coreerrors.New(coreerrors.KindFetch, coreerrors.CodeTransport, err)
	}
	price, err := nft.Price(ctx)
	if err != nil {
		return NftInfo{}, coreerrors.New(coreerrors.KindFetch, coreerrors.CodeTransport, err)
	}
	stakeToken, err := nft.StakeToken(ctx)
	if err != nil {
		return NftInfo{}, coreerrors.New(coreerrors.KindFetch, coreerrors.CodeTransport, err)
	}
	token, err := m.catalog.Token(ctx, stakeToken)
	if err != nil {
		return NftInfo{}, err
	}
	info := NftInfo{Address: nftAddress, Cap: capacity, Price: price, Token: token, Balance: big.NewInt(0)}
	if account := m.session.Snapshot().Account; account != (common.Address{}) {
		if balance, err := nft.BalanceOf(ctx, account); err == nil {
			info.Balance = balance
		}
	}
	m.mu.Lock()
	m.nft = &info
	m.mu.Unlock()
	return info, nil
}

// MintNft stakes the mint price on a stake-to-mint NFT contract, approving
// the stake token first when it is an ERC20.
func (m *Minter) MintNft(ctx context.Context, nftAddress common.Address) error {
	m.hooks.submitting(true)
	defer m.hooks.submitting(false)
	return m.mint(ctx, nftAddress, wallet.Handlers{})
}

func (m *Minter) mint(ctx context.Context, nftAddress common.Address, handlers wallet.Handlers) error {
	info, err := m.FetchNftInfo(ctx, nftAddress)
	if err != nil || info.Cap.Sign() <= 0 {
		if err != nil {
			m.log().Warn("nft info unavailable", "error", err)
		}
		return m.reject(nil, coreerrors.ErrOutOfStock)
	}
	client := m.session.Client()
	if client == nil {
		return m.fail(nil, "mint", common.Hash{}, coreerrors.Classify(wallet.ErrNoClient, coreerrors.KindPayment))
	}
	balance, err := client.Balance(ctx, info.Token)
	if err != nil {
		balance = big.NewInt(0)
	}
	if info.Price.Cmp(balance) > 0 {
		return m.reject(nil, coreerrors.InsufficientBalance(info.Token.Symbol))
	}

	value := big.NewInt(0)
	if info.Token.IsNative() {
		value = new(big.Int).Set(info.Price)
	} else if err := m.approveStake(ctx, client, info); err != nil {
		return err
	}

	data, err := contracts.NewTrollNFT(nftAddress, nil).PackStake(info.Price)
	if err != nil {
		return m.fail(nil, "mint", common.Hash{}, coreerrors.Classify(err, coreerrors.KindPayment))
	}
	pending, err := client.Send(ctx, wallet.Call{To: nftAddress, Data: data, Value: value})
	if err != nil {
		return m.fail(nil, "mint", common.Hash{}, coreerrors.Classify(err, coreerrors.KindPayment))
	}
	receipt, err := pending.Wait(ctx, wallet.Handlers{
		OnSubmitted: func(hash common.Hash) {
			m.hooks.status(StatusWarning, "Transaction submitted: "+hash.Hex())
			if handlers.OnSubmitted != nil {
				handlers.OnSubmitted(hash)
			}
		},
		OnConfirmed: handlers.OnConfirmed,
		OnFailed:    handlers.OnFailed,
	})
	if err != nil {
		return m.fail(nil, "mint", pending.Hash(), coreerrors.Classify(err, coreerrors.KindPayment))
	}

	refreshed, err := m.FetchNftInfo(ctx, nftAddress)
	if err != nil {
		m.log().Warn("nft refresh failed", "error", err)
		refreshed = info
	}
	m.emitter.Emit(events.NftMinted{Contract: nftAddress, TxHash: receiptHash(receipt, pending), Remaining: refreshed.Cap})
	if m.hooks.OnMintedNft != nil {
		m.hooks.OnMintedNft(refreshed)
	}
	m.hooks.closeStatus()
	return nil
}

func (m *Minter) approveStake(ctx context.Context, client wallet.Client, info NftInfo) error {
	owner := client.Address()
	allowance, err := client.Allowance(ctx, info.Token, owner, info.Address)
	if err == nil && allowance.Cmp(info.Price) >= 0 {
		return nil
	}
	pending, err := client.Approve(ctx, info.Token, info.Address, info.Price)
	if err == nil {
		_, err = pending.Wait(ctx, wallet.Handlers{})
	}
	m.metrics.RecordApproval(err)
	if err != nil {
		classified := coreerrors.Classify(err, coreerrors.KindApproval)
		m.hooks.status(StatusError, message(classified))
		return classified
	}
	return nil
}

// Nft returns the last fetched NFT contract state.
func (m *Minter) Nft() (NftInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nft == nil {
		return NftInfo{}, false
	}
	return *m.nft, true
}
