// Package catalog loads coin packs and bookstore items from a TOML seed file.
package catalog

import (
	"context"
	"fmt"
	"io"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// File is the seed file layout:
//
//	[[coin_pack]]
//	platform = "GOOGLE"
//	product_id = "coins_100"
//	name = "100 coins"
//	amount = 100
//	bonus = 10
//	price = "4.99"
//	currency = "USD"
//
//	[[story]]
//	story_list_id = 7
//	title = "The Long Night"
//	price_coins = 40
type File struct {
	CoinPacks []CoinPack `toml:"coin_pack"`
	Stories   []Story    `toml:"story"`
}

type CoinPack struct {
	Platform  string `toml:"platform"`
	ProductID string `toml:"product_id"`
	Name      string `toml:"name"`
	Amount    int64  `toml:"amount"`
	Bonus     int64  `toml:"bonus"`
	Price     string `toml:"price"`
	Currency  string `toml:"currency"`
	Inactive  bool   `toml:"inactive"`
	SortOrder int    `toml:"sort_order"`
}

type Story struct {
	StoryListID int64  `toml:"story_list_id"`
	Title       string `toml:"title"`
	Author      string `toml:"author"`
	CoverImage  string `toml:"cover_image"`
	PriceCoins  int64  `toml:"price_coins"`
	Inactive    bool   `toml:"inactive"`
}

// LoadFile decodes a seed file from disk.
func LoadFile(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &f, nil
}

// Decode reads a seed file from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &f, nil
}

// Result counts the rows written by Apply.
type Result struct {
	CoinPacks int
	Stories   int
}

// Apply validates every entry, then upserts all of them in one transaction.
func Apply(ctx context.Context, tx service.TxRunner, f *File) (*Result, error) {
	packs := make([]*domain.CoinPack, 0, len(f.CoinPacks))
	for i, p := range f.CoinPacks {
		pack, err := p.toDomain()
		if err != nil {
			return nil, fmt.Errorf("coin_pack[%d] %q: %w", i, p.ProductID, err)
		}
		packs = append(packs, pack)
	}
	stories := make([]*domain.StoreItem, 0, len(f.Stories))
	for i, s := range f.Stories {
		item, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("story[%d] %d: %w", i, s.StoryListID, err)
		}
		stories = append(stories, item)
	}

	err := tx.InTx(ctx, func(ctx context.Context, tx service.Tx) error {
		for _, p := range packs {
			if err := tx.CoinPacks().Upsert(ctx, p); err != nil {
				return fmt.Errorf("upsert coin pack %s: %w", p.ProductID, err)
			}
		}
		for _, s := range stories {
			if err := tx.Catalog().Upsert(ctx, s); err != nil {
				return fmt.Errorf("upsert story %d: %w", s.StoryListID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{CoinPacks: len(packs), Stories: len(stories)}, nil
}

func (p CoinPack) toDomain() (*domain.CoinPack, error) {
	platform, err := domain.ParsePlatform(p.Platform)
	if err != nil {
		return nil, err
	}
	if p.ProductID == "" {
		return nil, fmt.Errorf("product_id is required")
	}
	if p.Amount <= 0 || p.Bonus < 0 {
		return nil, fmt.Errorf("%w: amount must be positive and bonus non-negative", domain.ErrInvalidAmount)
	}
	price := decimal.Zero
	if p.Price != "" {
		if price, err = decimal.NewFromString(p.Price); err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	name := p.Name
	if name == "" {
		name = p.ProductID
	}
	return &domain.CoinPack{
		Platform:    platform,
		ProductID:   p.ProductID,
		Name:        name,
		BaseAmount:  p.Amount,
		BonusAmount: p.Bonus,
		Price:       price,
		Currency:    currency,
		IsActive:    !p.Inactive,
		SortOrder:   p.SortOrder,
	}, nil
}

func (s Story) toDomain() (*domain.StoreItem, error) {
	if s.StoryListID <= 0 {
		return nil, fmt.Errorf("story_list_id must be positive")
	}
	if s.PriceCoins <= 0 {
		return nil, fmt.Errorf("%w: price_coins must be positive", domain.ErrInvalidAmount)
	}
	return &domain.StoreItem{
		StoryListID: s.StoryListID,
		Title:       s.Title,
		Author:      s.Author,
		CoverImage:  s.CoverImage,
		PriceCoins:  s.PriceCoins,
		IsActive:    !s.Inactive,
	}, nil
}
