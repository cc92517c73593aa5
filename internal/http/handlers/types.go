package handlers

import "time"

// DropSummary is the public browse card. State is derived, never stored.
type DropSummary struct {
	ID           int64     `json:"id"`
	VendorID     int64     `json:"vendorId"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	UnitPrice    float64   `json:"unitPrice"`
	TotalQty     int32     `json:"totalQty"`
	RemainingQty int32     `json:"remainingQty"`
	State        string    `json:"state"`
}

type DropDetail struct {
	DropSummary
	TaxRate         float64        `json:"taxRate"`
	DeliveryEnabled bool           `json:"deliveryEnabled"`
	DeliveryFee     float64        `json:"deliveryFee"`
	MenuItems       []MenuItemView `json:"menuItems"`
}

type MenuItemView struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	BasePrice float64             `json:"basePrice"`
	Groups    []ModifierGroupView `json:"modifierGroups"`
}

type ModifierGroupView struct {
	ID        int64                `json:"id"`
	Name      string               `json:"name"`
	MinSelect int32                `json:"minSelect"`
	MaxSelect int32                `json:"maxSelect"`
	Options   []ModifierOptionView `json:"options"`
}

type ModifierOptionView struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderSelectionView struct {
	MenuItemID   int64   `json:"menuItemId"`
	MenuItemName string  `json:"menuItemName"`
	GroupID      int64   `json:"groupId"`
	GroupName    string  `json:"groupName"`
	OptionID     int64   `json:"optionId"`
	OptionName   string  `json:"optionName"`
	OptionPrice  float64 `json:"optionPrice"`
}

type OrderDetail struct {
	ID                int64                `json:"id"`
	OrderNumber       string               `json:"orderNumber"`
	DropID            int64                `json:"dropId"`
	DropName          string               `json:"dropName"`
	DropImageURL      *string              `json:"dropImageUrl,omitempty"`
	CustomerName      string               `json:"customerName"`
	CustomerEmail     string               `json:"customerEmail"`
	Quantity          int32                `json:"quantity"`
	IsBulk            bool                 `json:"isBulk"`
	Notes             *string              `json:"notes,omitempty"`
	Subtotal          float64              `json:"subtotal"`
	BookingFee        float64              `json:"bookingFee"`
	DeliveryFee       float64              `json:"deliveryFee"`
	TaxAmount         float64              `json:"taxAmount"`
	TotalPaid         float64              `json:"totalPaid"`
	PaymentStatus     string               `json:"paymentStatus"`
	Delivery          bool                 `json:"delivery"`
	DeliveryAddress   *string              `json:"deliveryAddress,omitempty"`
	CheckoutSessionID *string              `json:"checkoutSessionId,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	PaidAt            *time.Time           `json:"paidAt,omitempty"`
	Selections        []OrderSelectionView `json:"selections"`
}
