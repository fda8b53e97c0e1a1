package cart

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

const (
	itemsKey         = "items"
	compactKeyPrefix = "items_compact"

	recordSeparator = ";"
	fieldSeparator  = "|"
	compactFields   = 4
)

var validate = validator.New()

// Item is one decoded cart line.
type Item struct {
	ProductID  uuid.UUID  `validate:"required"`
	Quantity   int        `validate:"gt=0"`
	PriceCents int64      `validate:"gt=0"`
	SellerID   *uuid.UUID `validate:"-"`
}

// DecodeItems reconstructs the line items from checkout session metadata.
// The JSON blob is tried first; the chunked compact encoding exists because
// the metadata side channel is size-constrained.
func DecodeItems(metadata map[string]string) ([]Item, error) {
	var raw []rawItem

	if blob, ok := metadata[itemsKey]; ok && strings.TrimSpace(blob) != "" {
		parsed, err := decodeJSONItems(blob)
		if err != nil {
			return nil, err
		}
		raw = parsed
	} else {
		raw = decodeCompactItems(metadata)
	}

	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		item, ok := r.toItem()
		if !ok {
			continue
		}
		if err := validate.Struct(item); err != nil {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart metadata contains no valid items")
	}
	return items, nil
}

type rawItem struct {
	ProductID  string
	Quantity   string
	PriceCents string
	SellerID   string
}

func (r rawItem) toItem() (Item, bool) {
	productID, err := uuid.Parse(strings.TrimSpace(r.ProductID))
	if err != nil {
		return Item{}, false
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(r.Quantity))
	if err != nil {
		return Item{}, false
	}
	priceCents, err := strconv.ParseInt(strings.TrimSpace(r.PriceCents), 10, 64)
	if err != nil {
		return Item{}, false
	}

	item := Item{
		ProductID:  productID,
		Quantity:   quantity,
		PriceCents: priceCents,
	}
	if seller := strings.TrimSpace(r.SellerID); seller != "" {
		if sellerID, err := uuid.Parse(seller); err == nil {
			item.SellerID = &sellerID
		}
	}
	return item, true
}

func decodeJSONItems(blob string) ([]rawItem, error) {
	var entries []struct {
		ProductID  string      `json:"productId"`
		Quantity   json.Number `json:"quantity"`
		PriceCents json.Number `json:"priceCents"`
		SellerID   string      `json:"sellerId"`
	}
	decoder := json.NewDecoder(strings.NewReader(blob))
	decoder.UseNumber()
	if err := decoder.Decode(&entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cart items json")
	}

	raw := make([]rawItem, 0, len(entries))
	for _, e := range entries {
		raw = append(raw, rawItem{
			ProductID:  e.ProductID,
			Quantity:   e.Quantity.String(),
			PriceCents: e.PriceCents.String(),
			SellerID:   e.SellerID,
		})
	}
	return raw, nil
}

// decodeCompactItems reassembles the numbered chunk keys. Chunks are joined
// in ascending lexicographic order of the literal key strings.
func decodeCompactItems(metadata map[string]string) []rawItem {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		if strings.HasPrefix(key, compactKeyPrefix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	chunks := make([]string, 0, len(keys))
	for _, key := range keys {
		chunks = append(chunks, metadata[key])
	}
	joined := strings.Join(chunks, "")

	var raw []rawItem
	for _, record := range strings.Split(joined, recordSeparator) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, fieldSeparator)
		if len(fields) < compactFields {
			continue
		}
		raw = append(raw, rawItem{
			ProductID:  fields[0],
			Quantity:   fields[1],
			PriceCents: fields[2],
			SellerID:   fields[3],
		})
	}
	return raw
}

// SessionMeta carries the delivery parameters decoded from the same side
// channel.
type SessionMeta struct {
	DeliveryModeRaw  string
	BuyerLat         *float64
	BuyerLng         *float64
	DeliveryFeeCents int64
	ShippingAddress  *types.Address
	PromoCodeID      string
}

// DecodeSessionMeta extracts the non-item checkout parameters. Missing or
// malformed optional values are dropped silently; the decoder never fails.
func DecodeSessionMeta(metadata map[string]string) SessionMeta {
	meta := SessionMeta{
		DeliveryModeRaw: metadata["delivery_mode"],
		PromoCodeID:     strings.TrimSpace(metadata["promo_code_id"]),
	}

	if lat, err := strconv.ParseFloat(metadata["buyer_lat"], 64); err == nil {
		if lng, err := strconv.ParseFloat(metadata["buyer_lng"], 64); err == nil {
			meta.BuyerLat = &lat
			meta.BuyerLng = &lng
		}
	}
	if fee, err := strconv.ParseInt(metadata["delivery_fee_cents"], 10, 64); err == nil && fee > 0 {
		meta.DeliveryFeeCents = fee
	}
	if blob := metadata["shipping_address"]; blob != "" {
		var addr types.Address
		if err := json.Unmarshal([]byte(blob), &addr); err == nil {
			meta.ShippingAddress = &addr
		}
	}
	return meta
}
