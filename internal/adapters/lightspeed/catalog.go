package lightspeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/tidwall/gjson"
)

// ---------- variants ----------

// FindVariantsBySKU возвращает варианты, найденные по ?sku=. Точное совпадение проверяет вызывающий
func (c *Client) FindVariantsBySKU(ctx context.Context, sku string) ([]*models.RemoteVariant, error) {
	return c.listVariants(ctx, url.Values{"sku": {sku}})
}

func (c *Client) FindVariantsByEAN(ctx context.Context, ean string) ([]*models.RemoteVariant, error) {
	return c.listVariants(ctx, url.Values{"ean": {ean}})
}

func (c *Client) ListVariants(ctx context.Context, page, limit int) ([]*models.RemoteVariant, error) {
	return c.listVariants(ctx, pageQuery(page, limit))
}

func (c *Client) ListProductVariants(ctx context.Context, productID int64) ([]*models.RemoteVariant, error) {
	return c.listVariants(ctx, url.Values{"product": {strconv.FormatInt(productID, 10)}})
}

func (c *Client) listVariants(ctx context.Context, q url.Values) ([]*models.RemoteVariant, error) {
	body, err := c.do(ctx, http.MethodGet, "", "variants", q, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, "variants")
	if err != nil {
		return nil, err
	}
	out := make([]*models.RemoteVariant, 0, len(items))
	for _, it := range items {
		out = append(out, parseVariant(it))
	}
	return out, nil
}

func (c *Client) GetVariant(ctx context.Context, variantID int64) (*models.RemoteVariant, error) {
	body, err := c.do(ctx, http.MethodGet, "", fmt.Sprintf("variants/%d", variantID), nil, nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body, "variant")
	if err != nil {
		return nil, err
	}
	return parseVariant(obj), nil
}

func (c *Client) CreateVariant(ctx context.Context, payload map[string]interface{}) (*models.RemoteVariant, error) {
	body, err := c.do(ctx, http.MethodPost, "", "variants", nil, map[string]interface{}{"variant": payload})
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body, "variant")
	if err != nil {
		return nil, err
	}
	return parseVariant(obj), nil
}

func (c *Client) UpdateVariant(ctx context.Context, variantID int64, payload map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPut, "", fmt.Sprintf("variants/%d", variantID), nil, map[string]interface{}{"variant": payload})
	return err
}

// ---------- products ----------

func (c *Client) ListProducts(ctx context.Context, lang string, page, limit int) ([]*models.RemoteProduct, error) {
	body, err := c.do(ctx, http.MethodGet, lang, "products", pageQuery(page, limit), nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, "products")
	if err != nil {
		return nil, err
	}
	out := make([]*models.RemoteProduct, 0, len(items))
	for _, it := range items {
		out = append(out, parseProduct(it, c.lang(lang)))
	}
	return out, nil
}

// GetProduct получает товар в локали lang
func (c *Client) GetProduct(ctx context.Context, lang string, productID int64) (*models.RemoteProduct, error) {
	body, err := c.do(ctx, http.MethodGet, lang, fmt.Sprintf("products/%d", productID), nil, nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body, "product")
	if err != nil {
		return nil, err
	}
	return parseProduct(obj, c.lang(lang)), nil
}

func (c *Client) CreateProduct(ctx context.Context, lang string, payload map[string]interface{}) (*models.RemoteProduct, error) {
	body, err := c.do(ctx, http.MethodPost, lang, "products", nil, map[string]interface{}{"product": payload})
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body, "product")
	if err != nil {
		return nil, err
	}
	p := parseProduct(obj, c.lang(lang))
	if p.ID == 0 {
		return nil, fmt.Errorf("%w: created product has no id", utils.ErrUnexpectedEnvelope)
	}
	return p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, lang string, productID int64, payload map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPut, lang, fmt.Sprintf("products/%d", productID), nil, map[string]interface{}{"product": payload})
	return err
}

func (c *Client) lang(lang string) string {
	if lang == "" {
		return c.cfg.DefaultLanguage
	}
	return lang
}

// ---------- brands / suppliers ----------

func singular(kind models.DirectoryKind) string {
	if kind == models.Suppliers {
		return "supplier"
	}
	return "brand"
}

func (c *Client) ListReferences(ctx context.Context, kind models.DirectoryKind, page, limit int) ([]models.Reference, error) {
	body, err := c.do(ctx, http.MethodGet, "", string(kind), pageQuery(page, limit), nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]models.Reference, 0, len(items))
	for _, it := range items {
		out = append(out, parseReference(it))
	}
	return out, nil
}

func (c *Client) GetReference(ctx context.Context, kind models.DirectoryKind, id int64) (*models.Reference, error) {
	body, err := c.do(ctx, http.MethodGet, "", fmt.Sprintf("%s/%d", kind, id), nil, nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body, singular(kind))
	if err != nil {
		return nil, err
	}
	ref := parseReference(obj)
	return &ref, nil
}

// ---------- images ----------

func (c *Client) ListProductImages(ctx context.Context, productID int64) ([]models.RemoteImage, error) {
	body, err := c.do(ctx, http.MethodGet, "", fmt.Sprintf("products/%d/images", productID), nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, "productImages", "images")
	if err != nil {
		return nil, err
	}
	out := make([]models.RemoteImage, 0, len(items))
	for _, it := range items {
		out = append(out, parseImage(it))
	}
	return out, nil
}

func (c *Client) DeleteProductImage(ctx context.Context, productID, imageID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "", fmt.Sprintf("products/%d/images/%d", productID, imageID), nil, nil)
	return err
}

func (c *Client) UploadProductImage(ctx context.Context, productID int64, filename, attachment string) (*models.RemoteImage, error) {
	body, err := c.do(ctx, http.MethodPost, "", fmt.Sprintf("products/%d/images", productID), nil,
		map[string]interface{}{"productImage": map[string]string{"attachment": attachment, "filename": filename}})
	if err != nil {
		return nil, err
	}
	obj := gjson.GetBytes(body, "productImage")
	if !obj.IsObject() {
		obj = gjson.ParseBytes(body)
	}
	img := parseImage(obj)
	return &img, nil
}
