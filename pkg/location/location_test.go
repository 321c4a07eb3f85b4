package location_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/location"
)

// sentence adds the $ prefix and checksum to body.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func TestParseSentence(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		lat     float64
		lon     float64
		wantErr error
		anyErr  bool
	}{
		{
			name: "rmc north east",
			line: sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
			lat:  48.1173, lon: 11.516667,
		},
		{
			name: "gga multi constellation south west",
			line: sentence("GNGGA,123519,3352.128,S,15112.558,W,1,08,0.9,545.4,M,46.9,M,,"),
			lat:  -33.8688, lon: -151.209300,
		},
		{
			name:    "rmc void",
			line:    sentence("GPRMC,123519,V,,,,,,,230394,,"),
			wantErr: location.ErrNoFix,
		},
		{
			name:    "gga no quality",
			line:    sentence("GPGGA,123519,,,,,0,00,,,M,,M,,"),
			wantErr: location.ErrNoFix,
		},
		{
			name:   "bad checksum",
			line:   "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00",
			anyErr: true,
		},
		{
			name:   "unsupported",
			line:   sentence("GPGSV,3,1,11,03,03,111,00"),
			anyErr: true,
		},
		{
			name:   "garbage",
			line:   "hello",
			anyErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, err := location.ParseSentence(tt.line)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.InDelta(t, tt.lat, lat, 1e-4)
				assert.InDelta(t, tt.lon, lon, 1e-4)
			}
		})
	}
}

func TestMapsLink(t *testing.T) {
	got := location.MapsLink(location.Fix{Lat: 37.7749, Lon: -122.4194})
	assert.Equal(t, "https://maps.google.com/?q=37.7749,-122.4194", got)
}

func TestStaticAndUnavailable(t *testing.T) {
	_, ok := location.Unavailable{}.ReadLocation()
	assert.False(t, ok)

	s := location.NewStatic(1.5, 2.5)
	fix, ok := s.ReadLocation()
	require.True(t, ok)
	assert.Equal(t, 1.5, fix.Lat)

	s.Clear()
	_, ok = s.ReadLocation()
	assert.False(t, ok)

	s.Set(3, 4)
	fix, ok = s.ReadLocation()
	require.True(t, ok)
	assert.Equal(t, 4.0, fix.Lon)
}

// linePort serves queued bytes and times out like a real port when empty.
type linePort struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (p *linePort) push(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, s...)
}

func (p *linePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(p.data) == 0 {
		p.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.data)
	p.data = p.data[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *linePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *linePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *linePort) SetReadTimeout(time.Duration) error { return nil }

func TestGPS_ReadsLatestFix(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	port := &linePort{}
	gps := location.NewGPS(port, clk, log.Discard())
	defer gps.Close()

	_, ok := gps.ReadLocation()
	assert.False(t, ok, "no fix before any sentence")

	port.push(sentence("GPGSV,3,1,11,03,03,111,00") + "\r\n")
	port.push(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W") + "\r\n")

	require.Eventually(t, func() bool {
		_, ok := gps.ReadLocation()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	fix, _ := gps.ReadLocation()
	assert.InDelta(t, 48.1173, fix.Lat, 1e-4)

	clk.Advance(location.DefaultMaxFixAge + time.Second)
	_, ok = gps.ReadLocation()
	assert.False(t, ok, "stale fix is not reported")
}

func TestGPS_CloseStopsReader(t *testing.T) {
	port := &linePort{}
	gps := location.NewGPS(port, clock.Real{}, log.Discard())
	require.NoError(t, gps.Close())
	assert.NoError(t, gps.Close())
}
