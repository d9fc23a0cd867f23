package riot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// Lightweight endpoint on the platform host used to probe a key
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultValidationTimeout = 10 * time.Second
)

// KeyStatus is the outcome of probing an API key.
type KeyStatus int

const (
	KeyUnknown KeyStatus = iota
	KeyValid
	KeyRejected
)

func (s KeyStatus) String() string {
	switch s {
	case KeyValid:
		return "valid"
	case KeyRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// KeyValidator probes whether the Riot API accepts a key.
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
}

// KeyValidatorOption configures a KeyValidator
type KeyValidatorOption func(*KeyValidator)

// WithValidatorBaseURL sets the platform host to probe.
func WithValidatorBaseURL(u string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = u
	}
}

// WithValidatorTimeout sets the probe timeout.
func WithValidatorTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

// NewKeyValidator creates a KeyValidator probing the NA1 platform by default.
func NewKeyValidator(opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{Timeout: defaultValidationTimeout},
		baseURL:    na1BaseURL,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check probes apiKey. A 401/403 is KeyRejected with a nil error; anything
// other than 200 is KeyUnknown with an error describing why.
func (v *KeyValidator) Check(ctx context.Context, apiKey string) (KeyStatus, error) {
	if apiKey == "" {
		return KeyUnknown, errors.New("API key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return KeyUnknown, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return KeyUnknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return KeyValid, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return KeyRejected, nil
	default:
		return KeyUnknown, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
}
