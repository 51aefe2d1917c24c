package licensekey

import (
	"crypto/rand"
	"io"
	"math/big"
	"regexp"
	"strings"
)

const (
	Prefix   = "TATY"
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	segments   = 3
	segmentLen = 4
)

var keyPattern = regexp.MustCompile(`^TATY-[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}$`)

// Generate returns a key of the form TATY-XXXX-XXXX-XXXX drawn from Alphabet.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	limit := big.NewInt(int64(len(Alphabet)))
	var sb strings.Builder
	sb.WriteString(Prefix)
	for s := 0; s < segments; s++ {
		sb.WriteByte('-')
		for i := 0; i < segmentLen; i++ {
			n, err := rand.Int(r, limit)
			if err != nil {
				return "", err
			}
			sb.WriteByte(Alphabet[n.Int64()])
		}
	}
	return sb.String(), nil
}

// Valid reports whether key is well formed. It does not check that the key was issued.
func Valid(key string) bool {
	return keyPattern.MatchString(key)
}

// Format normalises user input: non-alphanumerics are dropped, letters upper-cased, the
// prefix re-added and hyphens inserted every four characters. Input with nothing after
// the prefix formats to "".
func Format(input string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToUpper(input) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
	}
	body := strings.TrimPrefix(cleaned.String(), Prefix)
	if len(body) > segments*segmentLen {
		body = body[:segments*segmentLen]
	}
	if body == "" {
		return ""
	}
	parts := []string{Prefix}
	for i := 0; i < len(body); i += segmentLen {
		end := min(i+segmentLen, len(body))
		parts = append(parts, body[i:end])
	}
	return strings.Join(parts, "-")
}
