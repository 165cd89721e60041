package giftcert

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// =============================================================================
// CODE GENERATOR
// =============================================================================

// CodeAlphabet excludes 0/O and 1/I/L so codes survive being read aloud or
// typed at a register.
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	DefaultCodePrefix      = "GC"
	DefaultCodeLength      = 12
	DefaultCodeGroupSize   = 4
	DefaultCodeMaxAttempts = 10
)

// CodeGenerator produces certificate codes like GC-ABCD-EFGH-JKMN.
type CodeGenerator struct {
	Prefix      string
	Length      int // random characters, excluding prefix and separators
	GroupSize   int // 0 disables grouping
	MaxAttempts int
	Check       CodeUniquenessCheck
}

// NewCodeGenerator returns a generator with default shape checking
// uniqueness against check.
func NewCodeGenerator(check CodeUniquenessCheck) *CodeGenerator {
	return &CodeGenerator{
		Prefix:      DefaultCodePrefix,
		Length:      DefaultCodeLength,
		GroupSize:   DefaultCodeGroupSize,
		MaxAttempts: DefaultCodeMaxAttempts,
		Check:       check,
	}
}

// Generate returns a code not yet used in org. It fails with
// ErrGenerationExhausted after MaxAttempts collisions.
func (g *CodeGenerator) Generate(ctx context.Context, org OrganizationID) (string, error) {
	attempts := g.maxAttempts()
	for i := 0; i < attempts; i++ {
		code, err := g.Candidate()
		if err != nil {
			return "", err
		}
		if g.Check == nil {
			return code, nil
		}
		exists, err := g.Check.CodeExists(ctx, org, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, attempts)
}

// Candidate returns one random code without any uniqueness check.
func (g *CodeGenerator) Candidate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultCodeLength
	}
	alphabetLen := big.NewInt(int64(len(CodeAlphabet)))

	var b strings.Builder
	if g.Prefix != "" {
		b.WriteString(strings.ToUpper(g.Prefix))
		b.WriteByte('-')
	}
	for i := 0; i < length; i++ {
		if g.GroupSize > 0 && i > 0 && i%g.GroupSize == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (g *CodeGenerator) maxAttempts() int {
	if g.MaxAttempts <= 0 {
		return DefaultCodeMaxAttempts
	}
	return g.MaxAttempts
}

// NormalizeCode cleans human input: surrounding and inner whitespace is
// dropped and letters are upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// =============================================================================
// QR PAYLOAD
// =============================================================================

const qrScheme = "GIFTCERT"

// QRPayload encodes a certificate code for optical redemption. With an empty
// baseURL the payload is GIFTCERT:<org>:<code>; otherwise it is a redeem URL
// carrying org and code as query parameters.
func QRPayload(baseURL string, org OrganizationID, code string) string {
	if baseURL == "" {
		return qrScheme + ":" + string(org) + ":" + code
	}
	q := url.Values{}
	q.Set("org", string(org))
	q.Set("code", code)
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + q.Encode()
}

// ParseQRPayload reverses QRPayload.
func ParseQRPayload(payload string) (OrganizationID, string, error) {
	payload = strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(payload, qrScheme+":"); ok {
		org, code, found := strings.Cut(rest, ":")
		if !found || org == "" || code == "" {
			return "", "", fmt.Errorf("%w: malformed qr payload", ErrInvalidRequest)
		}
		return OrganizationID(org), NormalizeCode(code), nil
	}
	u, err := url.Parse(payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed qr payload: %v", ErrInvalidRequest, err)
	}
	org, code := u.Query().Get("org"), u.Query().Get("code")
	if org == "" || code == "" {
		return "", "", fmt.Errorf("%w: qr payload missing org or code", ErrInvalidRequest)
	}
	return OrganizationID(org), NormalizeCode(code), nil
}
