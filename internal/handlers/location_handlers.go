package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// --- Philippine Location Lookups ---
//
// Address forms cascade province -> city -> barangay.
//

// distinctColumn lists the distinct values of one phil_locations column.
func (h *Handlers) distinctColumn(c *gin.Context, column, where string, args ...any) ([]string, error) {
	query := "SELECT DISTINCT " + column + " FROM phil_locations"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + column

	rows, err := h.DB.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetProvinces is the handler for GET /api/locations/provinces
func (h *Handlers) GetProvinces(c *gin.Context) {
	provinces, err := h.distinctColumn(c, "province", "")
	if err != nil {
		serverError(c, err, "Failed to load provinces")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provinces": provinces})
}

// GetCities is the handler for GET /api/locations/cities?province=
func (h *Handlers) GetCities(c *gin.Context) {
	province := strings.TrimSpace(c.Query("province"))
	if province == "" {
		fail(c, http.StatusBadRequest, "province is required.")
		return
	}
	cities, err := h.distinctColumn(c, "city", "province = ?", province)
	if err != nil {
		serverError(c, err, "Failed to load cities")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cities": cities})
}

// BarangayOption is one barangay with its postal code.
type BarangayOption struct {
	Name       string `json:"name"`
	PostalCode string `json:"postalCode"`
}

// GetBarangays is the handler for GET /api/locations/barangays?province=&city=
func (h *Handlers) GetBarangays(c *gin.Context) {
	province := strings.TrimSpace(c.Query("province"))
	city := strings.TrimSpace(c.Query("city"))
	if province == "" || city == "" {
		fail(c, http.StatusBadRequest, "province and city are required.")
		return
	}

	rows, err := h.DB.QueryContext(c.Request.Context(), `
		SELECT barangay, MIN(postal_code)
		FROM phil_locations
		WHERE province = ? AND city = ?
		GROUP BY barangay
		ORDER BY barangay`, province, city)
	if err != nil {
		serverError(c, err, "Failed to load barangays")
		return
	}
	defer rows.Close()

	barangays := []BarangayOption{}
	for rows.Next() {
		var b BarangayOption
		if err := rows.Scan(&b.Name, &b.PostalCode); err != nil {
			serverError(c, err, "Failed to scan barangay")
			return
		}
		barangays = append(barangays, b)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load barangays")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "barangays": barangays})
}
