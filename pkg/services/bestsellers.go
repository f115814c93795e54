package services

import (
	"context"

	"github.com/opsdash/opsdash/pkg/errors"
)

// BestsellerQuery is a catalog search request.
type BestsellerQuery struct {
	Query       string
	Category    string
	Marketplace string
	Limit       int
}

// BestsellerItem is one catalog search hit.
type BestsellerItem struct {
	ASIN  string  `json:"asin"`
	Title string  `json:"title"`
	Rank  int     `json:"rank"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
}

// BestsellerProvider searches the retail catalog. The production provider is
// backed by the Amazon Product Advertising API and needs real credentials.
type BestsellerProvider interface {
	Search(ctx context.Context, q BestsellerQuery) ([]BestsellerItem, error)
}

type bestsellerArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

// BestsellerSearch searches the retail catalog for bestsellers matching a
// query. Unlike the reporting operations it has no mock fallback, so it
// fails when only the mock credentials are configured.
func BestsellerSearch(ctx context.Context, sc *Context, args map[string]any) (any, error) {
	var p bestsellerArgs
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, errors.NewInvalidArgumentError("query is required", nil)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	if sc.Bestsellers == nil {
		if sc.Config.Amazon.Mock() {
			return nil, errors.NewHandlerError(
				"bestseller search needs real Amazon PAAPI credentials; "+
					"AMAZON_ACCESS_KEY and AMAZON_SECRET_KEY are set to the mock fallback", nil)
		}
		return nil, errors.NewHandlerError("bestseller provider not configured", nil)
	}

	items, err := sc.Bestsellers.Search(ctx, BestsellerQuery{
		Query:       p.Query,
		Category:    p.Category,
		Marketplace: sc.Config.Dashboard.Marketplace,
		Limit:       p.Limit,
	})
	if err != nil {
		return nil, errors.NewHandlerError("bestseller search failed", err)
	}

	return map[string]any{
		"query":       p.Query,
		"marketplace": sc.Config.Dashboard.Marketplace,
		"items":       items,
	}, nil
}
