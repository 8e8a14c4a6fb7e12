package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdash/optelem/src/telemetry"
)

// DefaultHTTPTimeout bounds one readings query end to end, including body
// transfer. Two-year windows at minute polling can run to a few hundred
// thousand rows, so this is generous.
const DefaultHTTPTimeout = 60 * time.Second

// HTTPSource fetches readings from the backend REST API:
//
//	GET {base}/api/devices/{device}/interfaces/{ifindex}/optics?hours=N
//
// The response is a JSON array of readings with fields
// measurement_timestamp, tx_power, rx_power and temperature (each channel
// independently nullable).
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource builds an HTTPSource with the default client timeout.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// Fetch implements SampleSource.
func (s *HTTPSource) Fetch(ctx context.Context, device string, ifIndex int, hours int) ([]telemetry.Reading, error) {
	u := fmt.Sprintf("%s/api/devices/%s/interfaces/%d/optics?hours=%d",
		strings.TrimRight(s.BaseURL, "/"), url.PathEscape(device), ifIndex, hours)
	Debugf("[%s if%d] GET %s", device, ifIndex, u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused, then report.
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetchFailed, resp.StatusCode, u)
	}

	var wire []wireReading
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode readings: %v", ErrFetchFailed, err)
	}
	Debugf("[%s if%d] %d readings in %s", device, ifIndex, len(wire), time.Since(start).Round(time.Millisecond))
	return toReadings(wire), nil
}
