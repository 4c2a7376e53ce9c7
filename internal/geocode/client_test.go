package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(baseURL string) *Client {
	c := NewClient("test-key", zap.NewNop())
	c.SetBaseURL(baseURL)
	return c
}

// geocodeOnce runs a single Geocode call inside a session scope.
func geocodeOnce(t *testing.T, c *Client, query string, extra url.Values) ([]any, error) {
	t.Helper()
	var results []any
	err := c.WithSession(context.Background(), func(ctx context.Context) error {
		var err error
		results, err = c.Geocode(ctx, query, extra)
		return err
	})
	return results, err
}

func TestClient_Geocode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "London", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"formatted":"London, UK","geometry":{"lat":"51.5104","lng":"-0.1021"}}]}`))
	}))
	defer server.Close()

	results, err := geocodeOnce(t, testClient(server.URL), "London", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	first := results[0].(map[string]any)
	assert.Equal(t, "London, UK", first["formatted"])

	// Coordinates come back numeric even when the server sent strings.
	geometry := first["geometry"].(map[string]any)
	assert.Equal(t, 51.5104, geometry["lat"])
	assert.Equal(t, -0.1021, geometry["lng"])
}

func TestClient_Geocode_ExtraParamsOverrideDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "other-key", r.URL.Query().Get("key"))
		assert.Equal(t, "de", r.URL.Query().Get("language"))
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	_, err := geocodeOnce(t, testClient(server.URL), "Berlin", url.Values{
		"key":      {"other-key"},
		"language": {"de"},
	})
	require.NoError(t, err)
}

func TestClient_Geocode_InvalidInput(t *testing.T) {
	c := testClient("http://unused.invalid")

	for _, query := range []string{"", "\xff\xfe"} {
		_, err := geocodeOnce(t, c, query, nil)

		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, query, invalid.BadValue)
	}
}

func TestClient_Geocode_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-JSON body with 200",
			status: http.StatusOK,
			body:   "<html>not json</html>",
			check: func(t *testing.T, err error) {
				var unknown *UnknownResponseError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "non-JSON result from server", unknown.Reason)
			},
		},
		{
			name:   "401 is not authorized",
			status: http.StatusUnauthorized,
			body:   `{"results":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotAuthorized)
			},
		},
		{
			name:   "401 beats rate fields in the body",
			status: http.StatusUnauthorized,
			body:   `{"rate":{"limit":2500,"reset":1700000000}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotAuthorized)
			},
		},
		{
			name:   "403 is forbidden",
			status: http.StatusForbidden,
			body:   `{"results":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrForbidden)
			},
		},
		{
			name:   "402 is rate limited",
			status: http.StatusPaymentRequired,
			body:   `{"rate":{"limit":2500,"reset":1700000000}}`,
			check: func(t *testing.T, err error) {
				var limited *RateLimitError
				require.ErrorAs(t, err, &limited)
				assert.Equal(t, 2500, limited.ResetTo)
				assert.Equal(t, time.Unix(1700000000, 0).UTC(), limited.ResetTime)
			},
		},
		{
			name:   "429 is rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"rate":{"limit":10,"reset":1700086400}}`,
			check: func(t *testing.T, err error) {
				var limited *RateLimitError
				require.ErrorAs(t, err, &limited)
				assert.Equal(t, 10, limited.ResetTo)
			},
		},
		{
			name:   "429 with no rate block still classifies",
			status: http.StatusTooManyRequests,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				var limited *RateLimitError
				require.ErrorAs(t, err, &limited)
				assert.Zero(t, limited.ResetTo)
				assert.True(t, limited.ResetTime.IsZero())
			},
		},
		{
			name:   "500 is an unknown response",
			status: http.StatusInternalServerError,
			body:   `{"results":[]}`,
			check: func(t *testing.T, err error) {
				var unknown *UnknownResponseError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "500 status from API", unknown.Reason)
			},
		},
		{
			name:   "missing results key",
			status: http.StatusOK,
			body:   `{"status":{"code":200}}`,
			check: func(t *testing.T, err error) {
				var unknown *UnknownResponseError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "missing results key", unknown.Reason)
			},
		},
		{
			name:   "non-JSON body with unclassified status",
			status: http.StatusNotFound,
			body:   "not found",
			check: func(t *testing.T, err error) {
				var unknown *UnknownResponseError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "missing results key", unknown.Reason)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := geocodeOnce(t, testClient(server.URL), "London", nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_ReverseGeocode_QueryFormatting(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	err := c.WithSession(context.Background(), func(ctx context.Context) error {
		_, err := c.ReverseGeocode(ctx, 51.5104, -0.1021, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "51.5104,-0.1021", gotQuery)
}

func TestQueryForReverseGeocoding(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     string
	}{
		{51.5104, -0.1021, "51.5104,-0.1021"},
		{0, 0, "0,0"},
		// Small values must not switch to scientific notation.
		{0.0000001, -0.0000002, "0.0000001,-0.0000002"},
		{-33.8688, 151.2093, "-33.8688,151.2093"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, queryForReverseGeocoding(tt.lat, tt.lng))
	}
}

func TestClient_SessionScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	c := testClient(server.URL)

	t.Run("call outside any scope fails", func(t *testing.T) {
		_, err := c.Geocode(context.Background(), "London", nil)
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})

	t.Run("call after scope exit fails even after a prior success", func(t *testing.T) {
		_, err := geocodeOnce(t, c, "London", nil)
		require.NoError(t, err)

		_, err = c.Geocode(context.Background(), "London", nil)
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})

	t.Run("session closes when fn fails", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := c.WithSession(context.Background(), func(context.Context) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		_, err = c.Geocode(context.Background(), "London", nil)
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})

	t.Run("nested scope is rejected", func(t *testing.T) {
		err := c.WithSession(context.Background(), func(ctx context.Context) error {
			return c.WithSession(ctx, func(context.Context) error { return nil })
		})
		assert.Error(t, err)
	})

	t.Run("scope is reusable after exit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := geocodeOnce(t, c, "London", nil)
			require.NoError(t, err)
		}
	})
}
