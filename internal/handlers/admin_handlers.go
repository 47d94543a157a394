package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/jeweluxe/jeweluxe-golang/internal/cache"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Admin: Catalog Management ---
//
// Every catalog mutation drops the cached storefront responses.
//

// invalidateCatalog clears the response cache. Failures are logged; the
// entries expire on their own.
func (h *Handlers) invalidateCatalog(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	n, err := cache.InvalidatePrefix(ctx, h.Cache, h.Config.Cache.Prefix)
	log := logging.NewPackageLogger("admin")
	if err != nil {
		log.Warn().Err(err).Msg("catalog cache invalidation failed")
		return
	}
	log.Debug().Int64("keys", n).Msg("catalog cache invalidated")
}

// GetAdminProducts is the handler for GET /api/admin/products
// Unlike the storefront list it includes archived products.
func (h *Handlers) GetAdminProducts(c *gin.Context) {
	f := productFilter{
		CategorySlug:    strings.TrimSpace(c.Query("category")),
		Query:           strings.TrimSpace(c.Query("q")),
		IncludeArchived: true,
	}
	switch c.Query("archived") {
	case "1", "true":
		f.ArchivedOnly = true
	case "0", "false":
		f.IncludeArchived = false
	}
	page, perPage := pageParams(c, 20, 100)

	products, total, err := h.queryProducts(c, f, c.DefaultQuery("sort", "newest"), perPage, (page-1)*perPage)
	if err != nil {
		serverError(c, err, "Failed to load products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   products,
		"total":   total,
		"page":    page,
		"pages":   totalPages(total, perPage),
	})
}

// ProductInput is the body of POST /api/admin/products and PUT /api/admin/products/:id
type ProductInput struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	CategoryID  *int64          `json:"category_id"`
	Image       string          `json:"image" binding:"max=500"`
}

// Validate checks what binding tags cannot express.
func (in *ProductInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
	if in.Name == "" {
		return &models.ValidationError{Field: "name", Message: "is required"}
	}
	if !in.Price.IsPositive() {
		return &models.ValidationError{Field: "price", Message: "must be greater than zero"}
	}
	if in.Price.Exponent() < -2 {
		return &models.ValidationError{Field: "price", Message: "must have at most two decimal places"}
	}
	return nil
}

// checkCategory verifies an optional category reference.
func checkCategory(ctx context.Context, q database.Querier, id *int64) (bool, error) {
	if id == nil {
		return true, nil
	}
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE id = ?", *id).Scan(&n)
	return n > 0, err
}

func (h *Handlers) bindProduct(c *gin.Context) (*ProductInput, bool) {
	var input ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return nil, false
	}
	if err := input.Validate(); err != nil {
		failValidation(c, err)
		return nil, false
	}
	ok, err := checkCategory(c.Request.Context(), h.DB, input.CategoryID)
	if err != nil {
		serverError(c, err, "Failed to check category")
		return nil, false
	}
	if !ok {
		failField(c, http.StatusUnprocessableEntity, "category_id", "Category not found.")
		return nil, false
	}
	return &input, true
}

// CreateProduct is the handler for POST /api/admin/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	input, ok := h.bindProduct(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, `
		INSERT INTO products (category_id, name, slug, description, price, stock, image)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.CategoryID, input.Name, slug.Make(input.Name), input.Description, input.Price, input.Stock, input.Image)
	if err != nil {
		serverError(c, err, "Failed to create product")
		return
	}
	id, _ := res.LastInsertId()
	h.invalidateCatalog(ctx)

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Product created.", "product_id": id, "slug": slug.Make(input.Name)})
}

// UpdateProduct is the handler for PUT /api/admin/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	input, ok := h.bindProduct(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, `
		UPDATE products
		SET category_id = ?, name = ?, slug = ?, description = ?, price = ?, stock = ?, image = ?
		WHERE id = ?`,
		input.CategoryID, input.Name, slug.Make(input.Name), input.Description, input.Price, input.Stock, input.Image, productID)
	if err != nil {
		serverError(c, err, "Failed to update product")
		return
	}
	if !h.rowsOrExists(c, res, "SELECT COUNT(*) FROM products WHERE id = ?", productID) {
		fail(c, http.StatusNotFound, "Product not found.")
		return
	}
	h.invalidateCatalog(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product updated."})
}

// rowsOrExists reports whether an UPDATE touched its row. MySQL counts
// unchanged rows as unaffected, so a zero falls back to an existence check.
func (h *Handlers) rowsOrExists(c *gin.Context, res sql.Result, existsQuery string, args ...any) bool {
	if n, _ := res.RowsAffected(); n > 0 {
		return true
	}
	var count int
	if err := h.DB.QueryRowContext(c.Request.Context(), existsQuery, args...).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// setArchived flips is_archived. Archived products disappear from the
// storefront but stay referenced by past orders.
func (h *Handlers) setArchived(c *gin.Context, archived bool) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, "UPDATE products SET is_archived = ? WHERE id = ?", archived, productID)
	if err != nil {
		serverError(c, err, "Failed to update product")
		return
	}
	if !h.rowsOrExists(c, res, "SELECT COUNT(*) FROM products WHERE id = ?", productID) {
		fail(c, http.StatusNotFound, "Product not found.")
		return
	}
	h.invalidateCatalog(ctx)

	msg := "Product restored."
	if archived {
		msg = "Product archived."
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "is_archived": archived})
}

// ArchiveProduct is the handler for PATCH /api/admin/products/:id/archive
func (h *Handlers) ArchiveProduct(c *gin.Context) { h.setArchived(c, true) }

// RestoreProduct is the handler for PATCH /api/admin/products/:id/restore
func (h *Handlers) RestoreProduct(c *gin.Context) { h.setArchived(c, false) }

// StockInput sets an absolute stock level.
type StockInput struct {
	Stock *int `json:"stock" binding:"required,gte=0"`
}

// UpdateStock is the handler for PATCH /api/admin/products/:id/stock
func (h *Handlers) UpdateStock(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input StockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		failField(c, http.StatusUnprocessableEntity, "stock", "Stock must be zero or more.")
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, "UPDATE products SET stock = ? WHERE id = ?", *input.Stock, productID)
	if err != nil {
		serverError(c, err, "Failed to update stock")
		return
	}
	if !h.rowsOrExists(c, res, "SELECT COUNT(*) FROM products WHERE id = ?", productID) {
		fail(c, http.StatusNotFound, "Product not found.")
		return
	}
	h.invalidateCatalog(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stock updated.", "stock": *input.Stock})
}

// CategoryInput is the body of POST /api/admin/categories
type CategoryInput struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateCategory is the handler for POST /api/admin/categories
func (h *Handlers) CreateCategory(c *gin.Context) {
	var input CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Name) == "" {
		failField(c, http.StatusUnprocessableEntity, "name", "Category name is required.")
		return
	}
	ctx := c.Request.Context()
	name := strings.TrimSpace(input.Name)
	categorySlug := slug.Make(name)

	res, err := h.DB.ExecContext(ctx, "INSERT INTO categories (name, slug) VALUES (?, ?)", name, categorySlug)
	if err != nil {
		if database.IsDuplicateKey(err) {
			failField(c, http.StatusConflict, "name", "A category with that name already exists.")
			return
		}
		serverError(c, err, "Failed to create category")
		return
	}
	id, _ := res.LastInsertId()
	h.invalidateCatalog(ctx)

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Category created.",
		"category": models.Category{ID: id, Name: name, Slug: categorySlug},
	})
}

// DeleteCategory is the handler for DELETE /api/admin/categories/:id
// Its products stay in the catalog without a category.
func (h *Handlers) DeleteCategory(c *gin.Context) {
	categoryID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", categoryID)
	if err != nil {
		serverError(c, err, "Failed to delete category")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(c, http.StatusNotFound, "Category not found.")
		return
	}
	h.invalidateCatalog(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category deleted."})
}

//
// --- Admin: Users ---
//

// GetAdminUsers is the handler for GET /api/admin/users?q=
func (h *Handlers) GetAdminUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, perPage := pageParams(c, 20, 100)

	where := "1 = 1"
	args := []any{}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		where = "(username LIKE ?" + likeEscape + " OR email LIKE ?" + likeEscape +
			" OR first_name LIKE ?" + likeEscape + " OR last_name LIKE ?" + likeEscape + ")"
		term := containsPattern(q)
		args = append(args, term, term, term, term)
	}

	var total int
	if err := h.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
		serverError(c, err, "Failed to count users")
		return
	}

	rows, err := h.DB.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.phone, u.is_admin, u.created_at,
			(SELECT COUNT(*) FROM orders o WHERE o.user_id = u.id)
		FROM users u
		WHERE `+where+`
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT ? OFFSET ?`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		serverError(c, err, "Failed to load users")
		return
	}
	defer rows.Close()

	type adminUser struct {
		models.User
		OrderCount int `json:"orderCount"`
	}
	users := []adminUser{}
	for rows.Next() {
		var u adminUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.IsAdmin, &u.CreatedAt, &u.OrderCount); err != nil {
			serverError(c, err, "Failed to scan user")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": users, "total": total, "page": page, "pages": totalPages(total, perPage)})
}
