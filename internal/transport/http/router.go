package http

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/handlers"
	"github.com/bmartins/loja-online/internal/handlers/cart"
	"github.com/bmartins/loja-online/internal/mykafka"
	"github.com/bmartins/loja-online/internal/service/cashier"
	"github.com/bmartins/loja-online/internal/service/inventory"
	"github.com/bmartins/loja-online/internal/service/notification"
	"github.com/bmartins/loja-online/internal/service/order"
	"github.com/bmartins/loja-online/internal/service/token"
)

// Deps carries everything the routes need. Producer and ES may be nil, the
// handlers degrade to skipping events and indexing.
type Deps struct {
	DB            *gorm.DB
	ES            *elasticsearch.Client
	ESIndex       string
	Producer      *mykafka.Producer
	Notifications *notification.Service
	JWTSecret     []byte
	RefreshSecret []byte
	AdminEmail    string
}

func Register(e *echo.Echo, d Deps) {
	tokens := &token.TokenService{DB: d.DB, JWTSecret: d.JWTSecret, RefreshSecret: d.RefreshSecret}

	auth := &handlers.AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, RefreshSecret: d.RefreshSecret, Producer: d.Producer}
	products := &handlers.ProductHandler{DB: d.DB, ES: d.ES, Index: d.ESIndex, Producer: d.Producer}
	searches := &handlers.SearchHandler{ES: d.ES, Index: d.ESIndex}
	stocks := &handlers.InventoryHandler{Svc: &inventory.Service{DB: d.DB}, Producer: d.Producer}
	orders := &handlers.OrderHandler{
		Svc:      &order.Service{DB: d.DB, Notifications: d.Notifications, AdminEmail: d.AdminEmail},
		Producer: d.Producer,
	}
	registers := &handlers.CashierHandler{Svc: &cashier.Service{DB: d.DB}, Producer: d.Producer}
	notifications := &handlers.NotificationHandler{Svc: d.Notifications}
	carts := &cart.Handler{DB: d.DB, JWTSecret: d.JWTSecret, Producer: d.Producer}
	stores := &handlers.StoreHandler{DB: d.DB, Producer: d.Producer}
	categories := &handlers.CategoryHandler{DB: d.DB}
	reviews := &handlers.ReviewHandler{DB: d.DB}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := e.Group("/api/v1")

	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)
	api.POST("/auth/logout", auth.Logout)

	api.GET("/products/physical", products.ListPhysical)
	api.GET("/products/physical/:id", products.GetPhysical)
	api.GET("/products/digital", products.ListDigital)
	api.GET("/products/digital/:id", products.GetDigital)
	api.GET("/products/search", searches.Search)

	api.GET("/stores", stores.List)
	api.GET("/stores/:id", stores.Get)
	api.GET("/categories", categories.List)
	api.GET("/reviews", reviews.ListByProduct)

	admin := api.Group("", tokens.AutoRefreshMiddlewareAdmin)
	admin.POST("/products/physical", products.CreatePhysical)
	admin.PUT("/products/physical/:id", products.UpdatePhysical)
	admin.DELETE("/products/physical/:id", products.DeletePhysical)
	admin.POST("/products/digital", products.CreateDigital)
	admin.PUT("/products/digital/:id", products.UpdateDigital)
	admin.DELETE("/products/digital/:id", products.DeleteDigital)

	admin.POST("/stores", stores.Create)
	admin.PUT("/stores/:id", stores.Update)
	admin.DELETE("/stores/:id", stores.Delete)
	admin.POST("/categories", categories.Create)
	admin.PUT("/categories/:id", categories.Update)
	admin.DELETE("/categories/:id", categories.Delete)

	admin.GET("/inventory", stocks.List)
	admin.GET("/inventory/:productId", stocks.ByProduct)
	admin.POST("/inventory/:productId/adjust", stocks.Adjust)

	admin.POST("/stores/:storeId/register/open", registers.Open)
	admin.POST("/stores/:storeId/register/close", registers.Close)
	admin.POST("/registers/:id/reopen", registers.Reopen)
	admin.GET("/registers/:id/balance", registers.Balance)
	admin.POST("/stores/:storeId/register/transactions", registers.AddTransaction)
	admin.GET("/stores/:storeId/register", registers.Get)

	admin.POST("/notificacoes/email", notifications.SendEmail)
	admin.POST("/notificacoes/sms", notifications.SendSMS)
	admin.POST("/notificacoes/teste", notifications.Test)

	client := api.Group("", tokens.AutoRefreshMiddleware)
	client.GET("/cart", carts.Get)
	client.POST("/cart/items", carts.AddItem)
	client.PUT("/cart/items/:itemId", carts.UpdateQuantity)
	client.DELETE("/cart/items/:itemId", carts.RemoveItem)

	client.POST("/orders", orders.Place)
	client.GET("/orders", orders.List)
	client.GET("/orders/:id", orders.Get)
	client.GET("/products/digital/:id/download", products.Download)
	client.POST("/reviews", reviews.Create)

	admin.PUT("/orders/:id/status", orders.UpdateStatus)
	admin.POST("/orders/:id/cancel", orders.Cancel)
}
