package biblioteca

import "strings"

// NationalID is a borrower's CPF-style national identification number. It may
// carry the usual punctuation ("529.982.247-25"); validation works on the
// normalized digit string.
type NationalID string

func (id NationalID) String() string {
	return string(id)
}

// Normalized returns the id with the conventional CPF punctuation and spaces
// stripped.
func (id NationalID) Normalized() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ':
			return -1
		default:
			return r
		}
	}, string(id))
}

// Valid reports whether the id passes CPF checksum validation.
func (id NationalID) Valid() bool {
	return IsValidNationalID(string(id))
}

// IsValidNationalID validates a CPF number: after stripping punctuation it
// must be exactly 11 digits, must not be one of the repeated-digit sequences
// ("00000000000" through "99999999999", which satisfy the checksum but are
// not issued), and both verification digits must match the mod-11 checksum.
func IsValidNationalID(raw string) bool {
	normalized := NationalID(raw).Normalized()
	if len(normalized) != cpfLength {
		return false
	}

	digits := make([]int, 0, cpfLength)
	repeated := true

	for i, r := range normalized {
		if r < '0' || r > '9' {
			return false
		}

		digits = append(digits, int(r-'0'))

		if i > 0 && digits[i] != digits[0] {
			repeated = false
		}
	}

	if repeated {
		return false
	}

	if cpfCheckDigit(digits, cpfLength-2) != digits[cpfLength-2] {
		return false
	}

	return cpfCheckDigit(digits, cpfLength-1) == digits[cpfLength-1]
}

const cpfLength = 11

// cpfCheckDigit computes the mod-11 verification digit over the first n
// digits, with weights n+1 down to 2 and the remainder 10 mapped to 0.
func cpfCheckDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}

	digit := (sum * 10) % 11
	if digit == 10 {
		digit = 0
	}

	return digit
}
