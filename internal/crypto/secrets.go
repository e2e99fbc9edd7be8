package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Password policy for generated and caller-supplied credentials.
const (
	GeneratedPasswordLength = 32
	MinPasswordLength       = 20
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]<>?"
)

var allChars = lowerChars + upperChars + digitChars + symbolChars

// GeneratePassword returns a random password satisfying the policy:
// GeneratedPasswordLength characters with at least one character from
// each of the four classes.
func GeneratePassword() (string, error) {
	// One guaranteed pick per class, the rest from the full alphabet.
	picks := make([]string, 0, GeneratedPasswordLength)
	for _, class := range []string{lowerChars, upperChars, digitChars, symbolChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		picks = append(picks, c)
	}
	for len(picks) < GeneratedPasswordLength {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		picks = append(picks, c)
	}

	// Shuffle so the class-guaranteed characters don't sit at fixed
	// positions.
	for i := len(picks) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		j := n.Int64()
		picks[i], picks[j] = picks[j], picks[i]
	}
	return strings.Join(picks, ""), nil
}

func pick(alphabet string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return string(alphabet[n.Int64()]), nil
}

// ValidatePassword checks a caller-supplied credential against the
// minimum-strength policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	for name, class := range map[string]string{
		"lowercase letter": lowerChars,
		"uppercase letter": upperChars,
		"digit":            digitChars,
		"symbol":           symbolChars,
	} {
		if !strings.ContainsAny(password, class) {
			return fmt.Errorf("password must contain at least one %s", name)
		}
	}
	return nil
}

// Sensitive wraps a secret value so it cannot leak through logging or
// serialization. It prints and marshals as a placeholder; the value is
// reachable only through Reveal.
type Sensitive struct {
	value string
}

// NewSensitive wraps a secret value.
func NewSensitive(value string) Sensitive {
	return Sensitive{value: value}
}

// Reveal returns the wrapped value.
func (s Sensitive) Reveal() string {
	return s.value
}

// IsZero reports whether no value is set.
func (s Sensitive) IsZero() bool {
	return s.value == ""
}

func (s Sensitive) String() string {
	return "[redacted]"
}

// Format defeats %#v and %+v reflection-based printing.
func (s Sensitive) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[redacted]")
}

func (s Sensitive) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}
