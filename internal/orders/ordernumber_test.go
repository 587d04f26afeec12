package orders

import (
	"regexp"
	"testing"
)

var orderNumberRe = regexp.MustCompile(`^TYR-\d{14}-[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{5}$`)

func TestNewOrderNumberFormat(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		number, err := NewOrderNumber()
		if err != nil {
			t.Fatalf("new order number: %v", err)
		}
		if !orderNumberRe.MatchString(number) {
			t.Fatalf("unexpected format %q", number)
		}
		seen[number] = struct{}{}
	}
	// 200 draws within the same second should still be distinct
	if len(seen) < 190 {
		t.Fatalf("too many collisions: %d unique of 200", len(seen))
	}
}
