package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader 签名头，格式 ts=<unix>;h1=<hex(hmac_sha256(secret, "<ts>:<body>"))>
const SignatureHeader = "Billing-Signature"

const defaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing billing signature")
	ErrInvalidSignature = errors.New("invalid billing signature")
	ErrSignatureExpired = errors.New("billing signature timestamp outside tolerance")
)

type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify 校验签名头与原始报文。未配置密钥时一律拒绝
func (v *Verifier) Verify(header string, body []byte) error {
	if header == "" {
		return ErrMissingSignature
	}
	if len(v.secret) == 0 {
		return ErrInvalidSignature
	}

	ts, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(ts, 0)
	if d := v.now().Sub(signedAt); d > v.tolerance || d < -v.tolerance {
		return ErrSignatureExpired
	}

	expected := computeSignature(v.secret, ts, body)
	for _, sig := range signatures {
		if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1 {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign 生成签名头，测试与本地联调用
func Sign(secret string, ts time.Time, body []byte) string {
	unix := ts.Unix()
	return fmt.Sprintf("ts=%d;h1=%s", unix, computeSignature([]byte(secret), unix, body))
}

func computeSignature(secret []byte, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseHeader 密钥轮换期间可能带多个 h1
func parseHeader(header string) (int64, []string, error) {
	var (
		ts         int64
		haveTS     bool
		signatures []string
	)

	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrInvalidSignature
		}
		switch key {
		case "ts":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			ts, haveTS = n, true
		case "h1":
			signatures = append(signatures, value)
		}
	}

	if !haveTS || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return ts, signatures, nil
}
