package handlers

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAddress_FirstBecomesDefault(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM addresses WHERE user_id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE addresses SET is_default = 0 WHERE user_id = \?`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO addresses`).
		WithArgs(int64(9), "Maria Santos", "09171234567", "12 Rizal St.", "Poblacion", "Makati", "Metro Manila", "1210", true).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectCommit()

	w := serve(http.MethodPost, "/addresses", "/addresses", h.CreateAddress, validAddress(), 9)

	require.Equal(t, http.StatusCreated, w.Code)
	address := decode(t, w)["address"].(map[string]any)
	assert.EqualValues(t, 31, address["id"])
	assert.Equal(t, true, address["isDefault"])
}

func TestCreateAddress_LaterKeepsExistingDefault(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM addresses WHERE user_id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO addresses`).
		WithArgs(int64(9), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(32, 1))
	mock.ExpectCommit()

	w := serve(http.MethodPost, "/addresses", "/addresses", h.CreateAddress, validAddress(), 9)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, decode(t, w)["address"].(map[string]any)["isDefault"])
}

func TestDeleteAddress(t *testing.T) {
	t.Run("deleting the default promotes the newest remaining", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_default FROM addresses WHERE id = \? AND user_id = \? FOR UPDATE`).
			WithArgs(int64(4), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"is_default"}).AddRow(true))
		mock.ExpectExec(`DELETE FROM addresses WHERE id = \? AND user_id = \?`).
			WithArgs(int64(4), int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE addresses SET is_default = 1 WHERE user_id = \? ORDER BY created_at DESC, id DESC LIMIT 1`).
			WithArgs(int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := serve(http.MethodDelete, "/addresses/:id", "/addresses/4", h.DeleteAddress, nil, 9)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("deleting another address leaves the default alone", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_default FROM addresses`).
			WillReturnRows(sqlmock.NewRows([]string{"is_default"}).AddRow(false))
		mock.ExpectExec(`DELETE FROM addresses`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := serve(http.MethodDelete, "/addresses/:id", "/addresses/4", h.DeleteAddress, nil, 9)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("someone else's address is not found", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_default FROM addresses`).
			WillReturnRows(sqlmock.NewRows([]string{"is_default"}))
		mock.ExpectRollback()

		w := serve(http.MethodDelete, "/addresses/:id", "/addresses/4", h.DeleteAddress, nil, 9)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
