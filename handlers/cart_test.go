package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"shop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCartHandler_GetCart(t *testing.T) {
	app := setupApp(t, 7, models.RoleCustomer, "http://unused")

	app.mock.ExpectQuery(quote("SELECT id FROM carts WHERE user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	app.mock.ExpectQuery(quote("FROM cart_items ci JOIN products p")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "name", "price", "stock", "quantity"}).
			AddRow(1, 1, "Ao thun", "50000", 100, 2))

	w := app.do(http.MethodGet, "/cart", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body struct {
		Items []models.CartItem `json:"items"`
		Total string            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode cart: %v", err)
	}
	if len(body.Items) != 1 || body.Total != "100000" {
		t.Errorf("Unexpected cart: %+v", body)
	}
	app.expectationsMet(t)
}
