package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrMissingCredentials is returned when any exchange credential is empty.
var ErrMissingCredentials = errors.New("exchange credentials are missing")

// Credentials identify the account on the exchange.
type Credentials struct {
	APIKey     string
	APISecret  string
	CustomerID string
}

// Validate checks that every credential is present.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "api secret")
	}
	if strings.TrimSpace(c.CustomerID) == "" {
		missing = append(missing, "customer id")
	}
	if len(missing) > 0 {
		return errors.Wrap(ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Signer allocates nonces and signs requests.
// Nonces are millisecond timestamps, bumped past the previous value when the clock
// stalls or goes backwards, so the sequence is strictly increasing for the process lifetime.
type Signer struct {
	creds Credentials
	now   func() time.Time

	mu        sync.Mutex
	lastNonce int64
}

// NewSigner creates a signer. Missing credentials fail here, not per call.
func NewSigner(creds Credentials) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	creds.APISecret = strings.TrimSpace(creds.APISecret)
	creds.CustomerID = strings.TrimSpace(creds.CustomerID)

	return &Signer{creds: creds, now: time.Now}, nil
}

// APIKey returns the public key sent with every signed request.
func (s *Signer) APIKey() string {
	return s.creds.APIKey
}

// Sign allocates the next nonce and returns it with the uppercase hex
// HMAC-SHA256 of nonce + customer id + api key.
func (s *Signer) Sign() (int64, string) {
	nonce := s.nextNonce()
	message := strconv.FormatInt(nonce, 10) + s.creds.CustomerID + s.creds.APIKey

	mac := hmac.New(sha256.New, []byte(s.creds.APISecret))
	mac.Write([]byte(message))

	return nonce, strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

func (s *Signer) nextNonce() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.now().UnixMilli()
	if nonce <= s.lastNonce {
		nonce = s.lastNonce + 1
	}
	s.lastNonce = nonce

	return nonce
}
