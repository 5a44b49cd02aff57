package webhook

// Every delivery platform posts a different JSON shape. Instead of one
// decoder per platform, a flat field mapping describes where the order
// reference and the line items live; the handler walks the payload with it.
type mapping struct {
	prefix   string // slot name prefix, keeps platform orders apart from floor tables
	orderKey string // top-level field holding the external order reference
	itemsKey string // top-level field holding the item array
	nameKey  string
	qtyKey   string
	priceKey string
}

var platforms = map[string]mapping{
	"yemeksepeti": {
		prefix:   "YS-",
		orderKey: "orderId",
		itemsKey: "items",
		nameKey:  "name",
		qtyKey:   "quantity",
		priceKey: "price",
	},
	"trendyol": {
		prefix:   "TY-",
		orderKey: "orderNumber",
		itemsKey: "lines",
		nameKey:  "productName",
		qtyKey:   "quantity",
		priceKey: "price",
	},
	"getir": {
		prefix:   "GT-",
		orderKey: "id",
		itemsKey: "products",
		nameKey:  "name",
		qtyKey:   "count",
		priceKey: "price",
	},
	"migros": {
		prefix:   "MG-",
		orderKey: "orderId",
		itemsKey: "orderItems",
		nameKey:  "productName",
		qtyKey:   "quantity",
		priceKey: "unitPrice",
	},
	"whatsapp": {
		prefix:   "WA-",
		orderKey: "phone",
		itemsKey: "items",
		nameKey:  "name",
		qtyKey:   "quantity",
		priceKey: "price",
	},
}
