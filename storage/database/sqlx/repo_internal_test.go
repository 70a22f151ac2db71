package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_uniqueField(t *testing.T) {
	tests := []struct {
		table, constraint string
		want              string
	}{
		{"users", "users_username_key", "username"},
		{"people", "people_document_number_key", "document_number"},
		{"products", "products_code_idx", "code"},
		{"users", "users_pkey", "id"},
		{"cash_registers", "custom_name", "custom_name"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			assert.Equal(t, tt.want, uniqueField(tt.table, tt.constraint))
		})
	}
}

func Test_where(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("status = ?", "paid")
	w.add("due_date BETWEEN ? AND ?", "2025-01-01", "2025-01-31")
	w.add("reversed = false")
	assert.Equal(t, " WHERE status = $1 AND due_date BETWEEN $2 AND $3 AND reversed = false", w.String())
	assert.Equal(t, []interface{}{"paid", "2025-01-01", "2025-01-31"}, w.args)
}

func Test_idConditions(t *testing.T) {
	var w where
	ok := idConditions(&w, map[string]string{"section_id": "6f1c1e9e-6bd2-4a4b-9a55-6e63d2f4c1a0", "student_id": ""})
	assert.True(t, ok)
	assert.Equal(t, " WHERE section_id = $1", w.String())

	assert.False(t, idConditions(&where{}, map[string]string{"section_id": "7A"}), "not a UUID")
}

func Test_columns(t *testing.T) {
	cols := columns{"id", "code", "name"}
	assert.Equal(t, "INSERT INTO products (id, code, name) VALUES (:id, :code, :name)", cols.insert("products"))
	assert.Equal(t, "UPDATE products SET code = :code, name = :name WHERE id = :id", cols.update("products"))
	assert.Equal(t, "SELECT id, code, name FROM products", cols.selectFrom("products"))
}
