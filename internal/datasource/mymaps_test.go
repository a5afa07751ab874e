package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("ZONAT_INTEGRATION") != "1" {
		t.Skip("set ZONAT_INTEGRATION=1 to run network tests")
	}
}

func TestKMLURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/d/kml?forcekml=1&mid=1ZrmW-kxq4VK",
		KMLURL("1ZrmW-kxq4VK", ""))
	assert.Equal(t,
		"https://www.google.com/maps/d/kml?forcekml=1&mid=abc&lid=xyz",
		KMLURL("abc", "xyz"))
}

func TestFetchMapData(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
		_, _ = w.Write([]byte(deliveryKML))
	}))
	defer srv.Close()

	ds := NewMyMapsDataSource(MyMapsConfig{Endpoint: srv.URL})
	md, err := ds.FetchMapData(context.Background(), "mid1", "lid1")
	require.NoError(t, err)

	assert.Equal(t, "forcekml=1&mid=mid1&lid=lid1", gotQuery)
	assert.Equal(t, "Kotiinkuljetus", md.Name)
	assert.Len(t, md.Features.Features, 3)
}

func TestFetchMapData_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
		},
		{
			name: "not kml",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>sign in</body></html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			ds := NewMyMapsDataSource(MyMapsConfig{Endpoint: srv.URL})
			md, err := ds.FetchMapData(context.Background(), "mid", "")
			assert.Error(t, err)
			assert.Nil(t, md)
		})
	}
}

func TestFetchMapData_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer srv.Close()

	ds := NewMyMapsDataSource(MyMapsConfig{Endpoint: srv.URL})
	_, err := ds.FetchMapData(context.Background(), "mid", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestFetchMapData_MissingID(t *testing.T) {
	ds := NewMyMapsDataSource(MyMapsConfig{})
	_, err := ds.FetchMapData(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingMapID)
}

func TestFetchMapData_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ds := NewMyMapsDataSource(MyMapsConfig{Endpoint: srv.URL})
	_, err := ds.FetchMapData(ctx, "mid", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchMapData_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(deliveryKML))
	}))
	defer srv.Close()

	ds := NewMyMapsDataSource(MyMapsConfig{Endpoint: srv.URL, MaxBytes: 64})
	_, err := ds.FetchMapData(context.Background(), "mid", "")
	assert.ErrorContains(t, err, "exceeds")
}

func TestColors(t *testing.T) {
	assert.Nil(t, ParseColors(""))
	assert.Equal(t,
		[]string{"#ff0000", "#0f0", "blue", "", "#ABCDEF", "rgb(1"},
		ParseColors("ff0000-0f0-blue--ABCDEF-rgb(1"))

	fc := geojson.NewFeatureCollection()
	for i := 0; i < 3; i++ {
		fc.Append(geojson.NewFeature(nil))
	}
	fc.Features[1].Properties["color"] = "keep"

	ApplyColors(fc, []string{"#111", ""})
	assert.Equal(t, "#111", fc.Features[0].Properties["color"])
	assert.Equal(t, "keep", fc.Features[1].Properties["color"])
	assert.Nil(t, fc.Features[2].Properties["color"])
}

func TestFetchMyMapsLive(t *testing.T) {
	requireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ds := NewMyMapsDataSource(DefaultMyMapsConfig())
	md, err := ds.FetchMapData(ctx, "1ZrmW-kxq4VK-ND9Hj6kWlcuD3-z18mBB", "")
	require.NoError(t, err)
	assert.NotEmpty(t, md.Features.Features)
}
