package ordernum

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	productPrefix      = "ORD"
	subscriptionPrefix = "SUB"
)

// ForProductOrder produces a human-facing order number for checkout orders.
func ForProductOrder(now time.Time) string {
	return build(productPrefix, now)
}

// ForSubscriptionOrder produces a human-facing order number for subscription
// invoices.
func ForSubscriptionOrder(now time.Time) string {
	return build(subscriptionPrefix, now)
}

func build(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.UTC().Format("20060102"), randomSuffix())
}

func randomSuffix() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fall back to a clock-derived suffix
		return time.Now().UnixNano() % 10000
	}
	return n.Int64()
}
