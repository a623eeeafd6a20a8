package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain errors returned by the entity methods below. Services wrap them
// into their own validation/conflict sentinels before they reach a handler.
var (
	ErrInvalidQuantity     = errors.New("quantidade deve ser maior que zero")
	ErrInsufficientStock   = errors.New("estoque insuficiente")
	ErrInsufficientReserve = errors.New("quantidade de reserva insuficiente")
	ErrRegisterClosed      = errors.New("caixa já está fechado")
	ErrRegisterOpen        = errors.New("caixa já está aberto")
	ErrRegisterNotOpen     = errors.New("não é possível adicionar transação em caixa fechado")
)

const (
	OrderStatusPending   = "Pendente"
	OrderStatusConfirmed = "Confirmado"
	OrderStatusShipped   = "Enviado"
	OrderStatusDelivered = "Entregue"
	OrderStatusCancelled = "Cancelado"

	PaymentStatusPending  = "Pendente"
	PaymentStatusApproved = "Aprovado"
	PaymentStatusRefunded = "Estornado"

	ShipmentStatusWaiting   = "Aguardando"
	ShipmentStatusPreparing = "Preparando"
	ShipmentStatusShipped   = "Enviado"
	ShipmentStatusDelivered = "Entregue"

	RegisterStatusOpen   = "Aberto"
	RegisterStatusClosed = "Fechado"

	TransactionIn  = "Entrada"
	TransactionOut = "Saida"

	StockStatusCritical = "Crítico"
	StockStatusWarning  = "Atenção"
	StockStatusNormal   = "Normal"
)

type Store struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Description string    `json:"description"`
	CNPJ        string    `gorm:"uniqueIndex"              json:"cnpj"`
	Phone       string    `json:"phone"`
	Active      bool      `gorm:"default:true"             json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"name"`
	Description string `json:"description"`
	ParentID    *uint  `gorm:"index"                    json:"parent_id"`
	Active      bool   `gorm:"default:true"             json:"active"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Phone        string    `json:"phone"`
	Role         string    `gorm:"not null;default:cliente" json:"role"`
	Active       bool      `gorm:"default:true"             json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Address struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint  `gorm:"index"                    json:"user_id"`
	StoreID    *uint  `gorm:"index"                    json:"store_id"`
	Street     string `gorm:"not null"                 json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `gorm:"not null"                 json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	Country    string `gorm:"default:BR"               json:"country"`
}

// ProductBase holds the fields shared by the physical and digital product
// variants. The two variants live in separate tables with their own id space.
type ProductBase struct {
	Name        string     `gorm:"not null"             json:"name"`
	Description string     `json:"description"`
	Price       float64    `gorm:"not null"             json:"price"`
	SKU         string     `gorm:"uniqueIndex;not null" json:"sku"`
	StoreID     uint       `gorm:"index;not null"       json:"store_id"`
	CategoryID  uint       `gorm:"index"                json:"category_id"`
	Active      bool       `gorm:"default:true"         json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type PhysicalProduct struct {
	ID          uint `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductBase `gorm:"embedded"`
	Weight      float64    `json:"weight"`
	Height      float64    `json:"height"`
	Width       float64    `json:"width"`
	Depth       float64    `json:"depth"`
	Inventory   *Inventory `gorm:"foreignKey:PhysicalProductID;constraint:OnDelete:CASCADE" json:"inventory,omitempty"`
}

func (p *PhysicalProduct) Dimensions() string {
	if p.Height > 0 && p.Width > 0 && p.Depth > 0 {
		return fmt.Sprintf("%.1f x %.1f x %.1f cm", p.Height, p.Width, p.Depth)
	}
	return "dimensões não informadas"
}

func (p *PhysicalProduct) Volume() float64 {
	return p.Height * p.Width * p.Depth
}

func (p *PhysicalProduct) CanShip() bool {
	return p.Weight > 0
}

type DigitalProduct struct {
	ID            uint `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductBase   `gorm:"embedded"`
	DownloadURL   string     `gorm:"not null"  json:"download_url"`
	FileSizeMB    float64    `json:"file_size_mb"`
	FileFormat    string     `json:"file_format"`
	DownloadLimit int        `gorm:"default:3" json:"download_limit"`
	ExpiresAt     *time.Time `json:"expires_at"`
	LicenseKey    string     `json:"license_key"`
}

func (p *DigitalProduct) LinkValid() bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(time.Now())
}

func (p *DigitalProduct) CanDownload(done int) bool {
	return done < p.DownloadLimit && p.LinkValid()
}

func (p *DigitalProduct) DownloadLink(userID uint) string {
	expires := time.Now().AddDate(0, 0, 1)
	return fmt.Sprintf("%s?token=%s&user=%d&expires=%s", p.DownloadURL, uuid.NewString(), userID, expires.Format("20060102"))
}

// Inventory tracks available vs. reserved stock of one physical product.
// The reserved quantity never exceeds the available one: every mutation
// below refuses to cross that line instead of clamping.
type Inventory struct {
	ID                uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	PhysicalProductID uint             `gorm:"uniqueIndex;not null"     json:"physical_product_id"`
	PhysicalProduct   *PhysicalProduct `gorm:"foreignKey:PhysicalProductID" json:"-"`
	QuantityAvailable int              `gorm:"not null;default:0"       json:"quantity_available"`
	QuantityReserved  int              `gorm:"not null;default:0"       json:"quantity_reserved"`
	ReorderPoint      int              `gorm:"default:0"                json:"reorder_point"`
	MinimumStock      int              `gorm:"default:0"                json:"minimum_stock"`
	LastMovement      *time.Time       `json:"last_movement"`
}

func (e *Inventory) stamp() {
	now := time.Now()
	e.LastMovement = &now
}

func (e *Inventory) AddStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	e.QuantityAvailable += quantity
	e.stamp()
	return nil
}

func (e *Inventory) RemoveStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > e.QuantityAvailable-e.QuantityReserved {
		return ErrInsufficientStock
	}
	e.QuantityAvailable -= quantity
	e.stamp()
	return nil
}

func (e *Inventory) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > e.QuantityAvailable-e.QuantityReserved {
		return ErrInsufficientStock
	}
	e.QuantityReserved += quantity
	e.stamp()
	return nil
}

func (e *Inventory) ReleaseReservation(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > e.QuantityReserved {
		return ErrInsufficientReserve
	}
	e.QuantityReserved -= quantity
	e.stamp()
	return nil
}

func (e *Inventory) RealStock() int {
	return e.QuantityAvailable - e.QuantityReserved
}

func (e *Inventory) HasStock(quantity int) bool {
	return e.RealStock() >= quantity
}

func (e *Inventory) Status() string {
	real := e.RealStock()
	if real <= e.MinimumStock {
		return StockStatusCritical
	}
	if real <= e.ReorderPoint {
		return StockStatusWarning
	}
	return StockStatusNormal
}

func (e *Inventory) NeedsRestock() bool {
	return e.RealStock() <= e.ReorderPoint
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID  uint       `gorm:"index;not null"           json:"client_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

// CartItem points at exactly one product variant, enforced with a check
// constraint so a row can never reference both tables at once.
type CartItem struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            uint      `gorm:"index;not null"           json:"cart_id"`
	PhysicalProductID *uint     `gorm:"index;check:chk_cart_item_variant,(physical_product_id IS NULL) <> (digital_product_id IS NULL)" json:"physical_product_id"`
	DigitalProductID  *uint     `gorm:"index" json:"digital_product_id"`
	Quantity          int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	UnitPrice         float64   `gorm:"not null"                 json:"unit_price"`
	AddedAt           time.Time `json:"added_at"`
}

func (i *CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

func (i *CartItem) ProductKind() string {
	if i.PhysicalProductID != nil {
		return "fisico"
	}
	if i.DigitalProductID != nil {
		return "digital"
	}
	return "desconhecido"
}

type Order struct {
	ID                uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Number            string      `gorm:"uniqueIndex;not null"     json:"number"`
	ClientID          uint        `gorm:"index;not null"           json:"client_id"`
	StoreID           uint        `gorm:"index;not null"           json:"store_id"`
	DeliveryAddressID uint        `json:"delivery_address_id"`
	Subtotal          float64     `gorm:"not null"                 json:"subtotal"`
	Freight           float64     `json:"freight"`
	Discount          float64     `json:"discount"`
	Total             float64     `gorm:"not null"                 json:"total"`
	Status            string      `gorm:"not null;default:Pendente" json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at"`
	Items             []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Payment           *Payment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	Shipment          *Shipment   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"shipment,omitempty"`
}

// OrderItem snapshots name and price at purchase time; later product edits
// must not rewrite order history.
type OrderItem struct {
	ID                uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           uint    `gorm:"index;not null"           json:"order_id"`
	PhysicalProductID *uint   `gorm:"check:chk_order_item_variant,(physical_product_id IS NULL) <> (digital_product_id IS NULL)" json:"physical_product_id"`
	DigitalProductID  *uint   `json:"digital_product_id"`
	ProductName       string  `gorm:"not null"                 json:"product_name"`
	Quantity          int     `gorm:"not null;check:quantity >= 1" json:"quantity"`
	UnitPrice         float64 `gorm:"not null"                 json:"unit_price"`
	Discount          float64 `json:"discount"`
}

func (i *OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * (i.UnitPrice - i.Discount)
}

type Payment struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"uniqueIndex;not null"     json:"order_id"`
	Method    string  `json:"method"`
	Value     float64 `gorm:"not null"                 json:"value"`
	Status    string  `gorm:"not null;default:Pendente" json:"status"`
	Reference string  `json:"reference"`
}

type Shipment struct {
	ID            uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       uint    `gorm:"uniqueIndex;not null"     json:"order_id"`
	Type          string  `json:"type"`
	Value         float64 `json:"value"`
	Status        string  `gorm:"not null;default:Aguardando" json:"status"`
	TrackingCode  string  `json:"tracking_code"`
	EstimatedDays *int    `json:"estimated_days"`
}

type CashRegister struct {
	ID             uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID        uint              `gorm:"index;not null"           json:"store_id"`
	Status         string            `gorm:"not null;default:Aberto"  json:"status"`
	OpeningBalance float64           `json:"opening_balance"`
	CurrentBalance float64           `json:"current_balance"`
	OpenedAt       time.Time         `json:"opened_at"`
	ClosedAt       *time.Time        `json:"closed_at"`
	Transactions   []CashTransaction `gorm:"foreignKey:CashRegisterID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
}

func (c *CashRegister) IsOpen() bool {
	return c.Status == RegisterStatusOpen
}

func (c *CashRegister) Close() error {
	if !c.IsOpen() {
		return ErrRegisterClosed
	}
	now := time.Now()
	c.Status = RegisterStatusClosed
	c.ClosedAt = &now
	return nil
}

func (c *CashRegister) Reopen() error {
	if c.IsOpen() {
		return ErrRegisterOpen
	}
	c.Status = RegisterStatusOpen
	c.ClosedAt = nil
	return nil
}

// Apply adjusts the running balance for one transaction. The balance is a
// cache of the transaction log; period queries always re-derive it from the
// log instead of trusting this field.
func (c *CashRegister) Apply(t *CashTransaction) error {
	if !c.IsOpen() {
		return ErrRegisterNotOpen
	}
	switch t.Type {
	case TransactionIn:
		c.CurrentBalance += t.Value
	case TransactionOut:
		c.CurrentBalance -= t.Value
	}
	return nil
}

type CashTransaction struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CashRegisterID uint      `gorm:"index;not null"           json:"cash_register_id"`
	Type           string    `gorm:"not null"                 json:"type"`
	Category       string    `json:"category"`
	Value          float64   `gorm:"not null"                 json:"value"`
	Description    string    `json:"description"`
	PaymentMethod  string    `json:"payment_method"`
	Note           string    `json:"note"`
	OrderID        *uint     `gorm:"index"                    json:"order_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Review is a client's rating of one product variant, 1 to 5 stars.
type Review struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID          uint      `gorm:"index;not null"           json:"client_id"`
	PhysicalProductID *uint     `gorm:"index;check:chk_review_variant,(physical_product_id IS NULL) <> (digital_product_id IS NULL)" json:"physical_product_id"`
	DigitalProductID  *uint     `gorm:"index" json:"digital_product_id"`
	Rating            int       `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	Comment           string    `json:"comment"`
	CreatedAt         time.Time `json:"created_at"`
}

func (r *Review) Valid() bool {
	return r.Rating >= 1 && r.Rating <= 5
}

type Notification struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel     string     `gorm:"not null"                 json:"channel"`
	Recipient   string     `gorm:"not null"                 json:"recipient"`
	Message     string     `gorm:"not null"                 json:"message"`
	Status      string     `gorm:"not null;default:Pendente" json:"status"`
	Error       string     `json:"error"`
	UserID      *uint      `gorm:"index"                    json:"user_id"`
	OrderID     *uint      `gorm:"index"                    json:"order_id"`
	SentAt      time.Time  `json:"sent_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// All lists every persisted entity in migration order.
func All() []any {
	return []any{
		&Store{}, &Category{}, &User{}, &RefreshToken{}, &Address{},
		&PhysicalProduct{}, &DigitalProduct{}, &Inventory{},
		&Cart{}, &CartItem{},
		&Order{}, &OrderItem{}, &Payment{}, &Shipment{},
		&CashRegister{}, &CashTransaction{},
		&Review{},
		&Notification{},
	}
}
