package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/domain/sync"
)

// ProductResolver maps WMS order lines onto local catalog products. The
// resolution chain is: direct SKU match, barcode match, remote variant
// lookup, and finally a synthesized placeholder so reconciliation never
// stalls on an unknown article.
type ProductResolver struct {
	products catalog.Repository
	gateway  sync.Gateway
	logger   *zap.Logger
}

// NewProductResolver creates a product resolver
func NewProductResolver(products catalog.Repository, gateway sync.Gateway, logger *zap.Logger) *ProductResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductResolver{products: products, gateway: gateway, logger: logger}
}

// Resolve finds or creates the local product for a remote order line
func (r *ProductResolver) Resolve(ctx context.Context, line sync.RemoteOrderLine) (*catalog.Product, error) {
	product, err := r.products.FindBySKU(ctx, line.ArticleCode)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, catalog.ErrProductNotFound) {
		return nil, fmt.Errorf("resolve product by sku: %w", err)
	}

	if line.Barcode != "" {
		product, err = r.products.FindByBarcode(ctx, line.Barcode)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("resolve product by barcode: %w", err)
		}
	}

	if line.VariantID != "" {
		product, err = r.resolveViaVariant(ctx, line)
		if err != nil {
			return nil, err
		}
		if product != nil {
			return product, nil
		}
	}

	r.logger.Warn("article unresolved, creating placeholder product",
		zap.String("article_code", line.ArticleCode),
		zap.String("variant_id", line.VariantID))

	placeholder := catalog.NewPlaceholder(line.ArticleCode, line.Description)
	placeholder.Barcode = line.Barcode
	placeholder.RemoteID = line.VariantID
	if err := r.products.Save(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("save placeholder product: %w", err)
	}
	return placeholder, nil
}

// resolveViaVariant fetches the WMS variant record and matches or creates a
// local product from its metadata. Returns nil when the variant yields no
// match either.
func (r *ProductResolver) resolveViaVariant(ctx context.Context, line sync.RemoteOrderLine) (*catalog.Product, error) {
	product, err := r.products.FindByRemoteID(ctx, line.VariantID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, catalog.ErrProductNotFound) {
		return nil, fmt.Errorf("resolve product by variant id: %w", err)
	}

	variant, err := r.gateway.GetVariant(ctx, line.VariantID)
	if err != nil {
		return nil, fmt.Errorf("fetch remote variant: %w", err)
	}
	if variant == nil {
		return nil, nil
	}

	// The variant may carry a SKU or barcode the order line omitted
	for _, lookup := range []struct {
		value string
		find  func(context.Context, string) (*catalog.Product, error)
	}{
		{variant.SKU, r.products.FindBySKU},
		{variant.Barcode, r.products.FindByBarcode},
	} {
		if lookup.value == "" {
			continue
		}
		product, err = lookup.find(ctx, lookup.value)
		if err == nil {
			product.RemoteID = variant.ID
			if saveErr := r.products.Save(ctx, product); saveErr != nil {
				return nil, fmt.Errorf("link product to variant: %w", saveErr)
			}
			return product, nil
		}
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// EnsureRemoteVariant makes sure a local product is known to the WMS,
// creating the variant when absent, and returns the remote variant id
func (r *ProductResolver) EnsureRemoteVariant(ctx context.Context, product *catalog.Product) (string, error) {
	if product.RemoteID != "" {
		return product.RemoteID, nil
	}

	variant, err := r.gateway.FindVariantByArticleCode(ctx, product.SKU)
	if err != nil {
		return "", fmt.Errorf("find remote variant: %w", err)
	}
	if variant == nil {
		variant, err = r.gateway.CreateVariant(ctx, map[string]any{
			"article_code": product.SKU,
			"description":  product.Name,
			"barcode":      product.Barcode,
		})
		if err != nil {
			return "", fmt.Errorf("create remote variant: %w", err)
		}
	}

	product.RemoteID = variant.ID
	if err := r.products.Save(ctx, product); err != nil {
		return "", fmt.Errorf("record remote variant id: %w", err)
	}
	return variant.ID, nil
}
