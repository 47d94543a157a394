package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Public Catalog ---
//

const productColumns = `p.id, p.category_id, p.name, p.slug, p.description, p.price, p.stock, p.image, p.is_archived,
	p.created_at, p.updated_at, COALESCE(c.name, ''), COALESCE(c.slug, '')`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var (
		p          models.Product
		categoryID sql.NullInt64
	)
	err := row.Scan(&p.ID, &categoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock, &p.Image, &p.IsArchived,
		&p.CreatedAt, &p.UpdatedAt, &p.CategoryName, &p.CategorySlug)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	return &p, nil
}

// productSorts maps the public sort keys to ORDER BY clauses.
var productSorts = map[string]string{
	"newest":     "p.created_at DESC, p.id DESC",
	"price_asc":  "p.price ASC, p.id ASC",
	"price_desc": "p.price DESC, p.id DESC",
	"name":       "p.name ASC, p.id ASC",
}

// productFilter builds the WHERE clause shared by the storefront and admin
// product lists.
type productFilter struct {
	CategorySlug    string
	Query           string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStock         bool
	IncludeArchived bool
	ArchivedOnly    bool
}

func (f productFilter) where() (string, []any) {
	clauses := []string{"1 = 1"}
	args := []any{}
	switch {
	case f.ArchivedOnly:
		clauses = append(clauses, "p.is_archived = 1")
	case !f.IncludeArchived:
		clauses = append(clauses, "p.is_archived = 0")
	}
	if f.CategorySlug != "" {
		clauses = append(clauses, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}
	if f.Query != "" {
		clauses = append(clauses, "(p.name LIKE ?"+likeEscape+" OR p.description LIKE ?"+likeEscape+")")
		term := containsPattern(f.Query)
		args = append(args, term, term)
	}
	if f.MinPrice != nil {
		clauses = append(clauses, "p.price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, "p.price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.InStock {
		clauses = append(clauses, "p.stock > 0")
	}
	return strings.Join(clauses, " AND "), args
}

// parsePrice reads an optional decimal query parameter.
func parsePrice(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		fail(c, http.StatusBadRequest, "Invalid "+name+".")
		return nil, false
	}
	return &d, true
}

// queryProducts runs a filtered, sorted, paginated product list.
func (h *Handlers) queryProducts(c *gin.Context, f productFilter, sort string, limit, offset int) ([]*models.Product, int, error) {
	ctx := c.Request.Context()
	where, args := f.where()

	var total int
	countQuery := "SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE " + where
	if err := h.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, ok := productSorts[sort]
	if !ok {
		orderBy = productSorts["newest"]
	}
	query := "SELECT " + productColumns + " FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE " +
		where + " ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	rows, err := h.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ListProducts is the handler for GET /api/products
func (h *Handlers) ListProducts(c *gin.Context) {
	// 1. Get filters from query parameters
	f := productFilter{
		CategorySlug: strings.TrimSpace(c.Query("category")),
		Query:        strings.TrimSpace(c.Query("q")),
		InStock:      c.Query("in_stock") == "1" || c.Query("in_stock") == "true",
	}
	var ok bool
	if f.MinPrice, ok = parsePrice(c, "min_price"); !ok {
		return
	}
	if f.MaxPrice, ok = parsePrice(c, "max_price"); !ok {
		return
	}
	page, perPage := pageParams(c, 12, 48)

	// 2. Query
	products, total, err := h.queryProducts(c, f, c.DefaultQuery("sort", "newest"), perPage, (page-1)*perPage)
	if err != nil {
		serverError(c, err, "Failed to load products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"items":    products,
		"total":    total,
		"page":     page,
		"per_page": perPage,
		"pages":    totalPages(total, perPage),
	})
}

// GetProduct is the handler for GET /api/products/:id
// Archived products are hidden from the storefront.
func (h *Handlers) GetProduct(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 1. Product
	product, err := scanProduct(h.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE p.id = ? AND p.is_archived = 0",
		productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Product not found.")
			return
		}
		serverError(c, err, "Failed to load product")
		return
	}

	// 2. Approved reviews
	reviews, err := h.approvedReviews(ctx, productID)
	if err != nil {
		serverError(c, err, "Failed to load reviews")
		return
	}
	avg := decimal.Zero
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		avg = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
	}

	// 3. Wishlist flag for signed-in shoppers
	inWishlist := false
	if userID := currentUserID(c); userID > 0 {
		var n int
		if err := h.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM wishlist WHERE user_id = ? AND product_id = ?", userID, productID).Scan(&n); err != nil {
			serverError(c, err, "Failed to load wishlist")
			return
		}
		inWishlist = n > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"product":      product,
		"reviews":      reviews,
		"avg_rating":   avg.StringFixed(1),
		"review_count": len(reviews),
		"in_wishlist":  inWishlist,
	})
}

// GetCategories is the handler for GET /api/categories
func (h *Handlers) GetCategories(c *gin.Context) {
	rows, err := h.DB.QueryContext(c.Request.Context(), `
		SELECT c.id, c.name, c.slug, c.created_at, COUNT(p.id)
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.is_archived = 0
		GROUP BY c.id, c.name, c.slug, c.created_at
		ORDER BY c.name`)
	if err != nil {
		serverError(c, err, "Failed to load categories")
		return
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.CreatedAt, &cat.ProductCount); err != nil {
			serverError(c, err, "Failed to scan category")
			return
		}
		categories = append(categories, &cat)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}
