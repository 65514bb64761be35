package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the result class of a delivery call.
type DeliveryStatus string

const (
	DeliveryAccepted       DeliveryStatus = "ACCEPTED"
	DeliveryRejected       DeliveryStatus = "REJECTED"
	DeliveryTransportError DeliveryStatus = "TRANSPORT_ERROR"
)

// Outcome is what the delivery client reports for a single call.
type Outcome struct {
	Status     DeliveryStatus
	StatusCode int
	Reason     string
	// InvalidBlocks lists block indexes (header included) the endpoint
	// reported as malformed. Empty when the endpoint did not say.
	InvalidBlocks []int
	Attempts      int
	Err           error
}

// Accepted reports whether the endpoint acknowledged the call.
func (o Outcome) Accepted() bool {
	return o.Status == DeliveryAccepted
}

// Salvageable reports whether the rejection names specific malformed
// elements, so retrying item by item may get the rest through.
func (o Outcome) Salvageable() bool {
	return o.Status == DeliveryRejected && o.StatusCode == 400 && len(o.InvalidBlocks) > 0
}

func (o Outcome) String() string {
	switch o.Status {
	case DeliveryAccepted:
		return fmt.Sprintf("accepted (HTTP %d)", o.StatusCode)
	case DeliveryRejected:
		return fmt.Sprintf("rejected (HTTP %d): %s", o.StatusCode, o.Reason)
	default:
		return fmt.Sprintf("transport error: %v", o.Err)
	}
}

// Quote is a cosmetic price snapshot shown in topic headers.
type Quote struct {
	Symbol        string
	Price         float64
	PreviousClose float64
	At            time.Time
}

// ChangePercent is the move against the previous close; 0 when unknown.
func (q Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// Summary renders the quote as "^TWII 23,456.78 (+1.23%)".
func (q Quote) Summary() string {
	line := fmt.Sprintf("%s %s", q.Symbol, groupThousands(q.Price))
	if q.PreviousClose > 0 {
		line += fmt.Sprintf(" (%+.2f%%)", q.ChangePercent())
	}
	return line
}

func groupThousands(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "." + frac
}
