package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() Credentials {
	return Credentials{APIKey: "key", APISecret: "secret", CustomerID: "123456"}
}

func TestNewSigner_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"no key", Credentials{APISecret: "s", CustomerID: "c"}},
		{"no secret", Credentials{APIKey: "k", CustomerID: "c"}},
		{"no customer id", Credentials{APIKey: "k", APISecret: "s"}},
		{"blank values", Credentials{APIKey: "  ", APISecret: "s", CustomerID: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(tt.creds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingCredentials))
			assert.Nil(t, signer)
		})
	}
}

func TestSigner_Signature(t *testing.T) {
	signer, err := NewSigner(testCredentials())
	require.NoError(t, err)

	nonce, signature := signer.Sign()

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(strconv.FormatInt(nonce, 10) + "123456" + "key"))
	expected := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	assert.Equal(t, expected, signature)
	assert.Equal(t, strings.ToUpper(signature), signature)
	assert.Len(t, signature, 64)
}

func TestSigner_NonceStrictlyIncreasingWithFrozenClock(t *testing.T) {
	signer, err := NewSigner(testCredentials())
	require.NoError(t, err)

	frozen := time.UnixMilli(1_700_000_000_000)
	signer.now = func() time.Time { return frozen }

	prev, _ := signer.Sign()
	for i := 0; i < 100; i++ {
		nonce, _ := signer.Sign()
		require.Greater(t, nonce, prev)
		prev = nonce
	}
}

func TestSigner_NonceSurvivesClockGoingBackwards(t *testing.T) {
	signer, err := NewSigner(testCredentials())
	require.NoError(t, err)

	clock := time.UnixMilli(1_700_000_000_000)
	signer.now = func() time.Time { return clock }
	first, _ := signer.Sign()

	clock = clock.Add(-time.Hour)
	second, _ := signer.Sign()

	assert.Equal(t, first+1, second)
}

func TestSigner_ConcurrentNoncesAreUnique(t *testing.T) {
	signer, err := NewSigner(testCredentials())
	require.NoError(t, err)

	const workers, perWorker = 8, 200
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		nonces = make(map[int64]struct{}, workers*perWorker)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			var last int64
			for i := 0; i < perWorker; i++ {
				nonce, _ := signer.Sign()
				// each goroutine observes its own allocations in increasing order
				assert.Greater(t, nonce, last)
				last = nonce
				local = append(local, nonce)
			}
			mu.Lock()
			for _, n := range local {
				nonces[n] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, nonces, workers*perWorker, "duplicate nonces were allocated")
}
