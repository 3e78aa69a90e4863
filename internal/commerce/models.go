package commerce

// Product is a catalog item snapshot.
type Product struct {
	ID             string
	Name           string
	Description    string
	PriceFormatted string
	PriceMinor     int
	ImageID        string
}

// CartItem is one line of a cart.
type CartItem struct {
	ID                 string
	ProductID          string
	Name               string
	Description        string
	Quantity           int
	UnitPriceFormatted string
	LinePriceFormatted string
}

// CartContents is the full cart with its display total.
type CartContents struct {
	Items          []CartItem
	TotalFormatted string
	TotalMinor     int
}

// Empty reports whether the cart has no items.
func (c CartContents) Empty() bool {
	return len(c.Items) == 0
}

// Customer is a commerce-side customer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// wire types mirror the JSON-API envelope of the catalog backend.

type priceWire struct {
	Amount    int    `json:"amount"`
	Formatted string `json:"formatted"`
}

type displayPriceWire struct {
	WithTax struct {
		priceWire
		Unit  priceWire `json:"unit"`
		Value priceWire `json:"value"`
	} `json:"with_tax"`
}

type productWire struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Meta          struct {
		DisplayPrice displayPriceWire `json:"display_price"`
	} `json:"meta"`
	Relationships struct {
		MainImage *struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

func (w productWire) toProduct() Product {
	p := Product{
		ID:             w.ID,
		Name:           w.Name,
		Description:    w.Description,
		PriceFormatted: w.Meta.DisplayPrice.WithTax.Formatted,
		PriceMinor:     w.Meta.DisplayPrice.WithTax.Amount,
	}
	if w.Relationships.MainImage != nil {
		p.ImageID = w.Relationships.MainImage.Data.ID
	}
	return p
}

type cartItemWire struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Meta        struct {
		DisplayPrice displayPriceWire `json:"display_price"`
	} `json:"meta"`
}

type servicePointWire struct {
	ID        string  `json:"id"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CourierID int64   `json:"courier_id"`
}

type customerWire struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
