package usecase

import (
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
)

const addressHexLen = 40

var hundred = decimal.NewFromInt(100)

// ValidateAmount checks a requested gross amount against the configured minimum.
func ValidateAmount(amount, minimum decimal.Decimal) error {
	if !amount.IsPositive() {
		return &domainErrors.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if amount.LessThan(minimum) {
		return &domainErrors.ValidationError{Field: "amount", Reason: "below minimum withdrawal " + minimum.String()}
	}
	return nil
}

// CalculateFee returns the platform fee for a gross amount, rounded to 8 places.
func CalculateFee(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(8)
}

// NormalizeAddress validates an EVM address and returns its EIP-55 checksummed form.
// Mixed-case input must already carry a valid checksum.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) != addressHexLen+2 || !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", &domainErrors.ValidationError{Field: "to_address", Reason: "must be 0x followed by 40 hex digits"}
	}
	body := address[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", &domainErrors.ValidationError{Field: "to_address", Reason: "must be 0x followed by 40 hex digits"}
	}

	checksummed := checksumAddress(body)
	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body != lower && body != upper && "0x"+body != checksummed {
		return "", &domainErrors.ValidationError{Field: "to_address", Reason: "checksum mismatch"}
	}
	return checksummed, nil
}

func checksumAddress(body string) string {
	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}
