package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReadOnlyQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{
			name:  "adds limit",
			query: "SELECT name, price FROM products WHERE is_archived = 0;",
			want:  "SELECT name, price FROM products WHERE is_archived = 0 LIMIT 50",
		},
		{
			name:  "keeps existing limit",
			query: "select name from products limit 5",
			want:  "select name from products limit 5",
		},
		{name: "update", query: "UPDATE products SET price = 1", wantErr: true},
		{name: "stacked statements", query: "SELECT 1; DROP TABLE products", wantErr: true},
		{name: "private table", query: "SELECT email, password_hash FROM users", wantErr: true},
		{name: "subquery on orders", query: "SELECT name FROM products WHERE id IN (SELECT product_id FROM order_items)", wantErr: true},
		{name: "sleep", query: "SELECT SLEEP(10)", wantErr: true},
		{name: "empty", query: "  ", wantErr: true},
		{
			name:  "join with aliases",
			query: "SELECT p.name, c.name FROM products p JOIN categories AS c ON c.id = p.category_id WHERE p.stock > 0 LIMIT 10",
			want:  "SELECT p.name, c.name FROM products p JOIN categories AS c ON c.id = p.category_id WHERE p.stock > 0 LIMIT 10",
		},
		{
			name:  "private table name inside a literal",
			query: "SELECT name FROM products WHERE description LIKE '%users%'",
			want:  "SELECT name FROM products WHERE description LIKE '%users%' LIMIT 50",
		},
		{
			name:  "approved reviews view",
			query: "SELECT AVG(rating) FROM approved_reviews WHERE product_id = 3",
			want:  "SELECT AVG(rating) FROM approved_reviews WHERE product_id = 3 LIMIT 50",
		},
		{name: "mysql system schema", query: "SELECT user, authentication_string FROM mysql.user", wantErr: true},
		{name: "load_file", query: "SELECT LOAD_FILE('/etc/passwd')", wantErr: true},
		{name: "information_schema", query: "SELECT table_name FROM information_schema.tables", wantErr: true},
		{name: "pending reviews", query: "SELECT comment FROM product_reviews WHERE status = 'pending'", wantErr: true},
		{name: "other database", query: "SELECT * FROM shop_backup.products", wantErr: true},
		{name: "comma join to another schema", query: "SELECT p.name FROM products p, archive.customers", wantErr: true},
		{name: "unlisted table", query: "SELECT * FROM sessions", wantErr: true},
		{name: "server variable", query: "SELECT @@version", wantErr: true},
		{name: "into outfile", query: "SELECT name FROM products INTO OUTFILE '/tmp/x'", wantErr: true},
		{name: "comment hides rest", query: "SELECT name FROM products -- ; DROP", wantErr: true},
		{name: "backquoted name", query: "SELECT * FROM `users`", wantErr: true},
		{name: "current user", query: "SELECT CURRENT_USER()", wantErr: true},
		{name: "literal breaks out with escape", query: `SELECT name FROM products WHERE name = '\' UNION SELECT password_hash FROM users`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckReadOnlyQuery(tt.query)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafeQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, systemPrompt(""), "helping a guest")
	assert.Contains(t, systemPrompt("Maria"), "helping Maria")
	assert.Contains(t, systemPrompt("Maria"), "approved_reviews")
	assert.NotContains(t, systemPrompt("Maria"), "product_reviews")
}
