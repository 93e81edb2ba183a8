package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"medinearby/internal/models"
)

var (
	ErrDenied      = errors.New("geolocation permission denied")
	ErrUnsupported = errors.New("geolocation not supported")
)

// Platform produces the user's current position once per call.
type Platform interface {
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

// PlatformFunc adapts a function to Platform.
type PlatformFunc func(ctx context.Context) (models.Coordinate, error)

func (f PlatformFunc) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	return f(ctx)
}

// Reported returns a position already obtained by the client.
func Reported(c models.Coordinate) Platform {
	return PlatformFunc(func(context.Context) (models.Coordinate, error) {
		return c, nil
	})
}

// Denied is the platform for a client that refused to share its position.
func Denied() Platform {
	return PlatformFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, ErrDenied
	})
}

// Unavailable is the platform for a client without geolocation support.
func Unavailable() Platform {
	return PlatformFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, ErrUnsupported
	})
}

// GeoIP resolves positions from a MaxMind City database.
type GeoIP struct {
	reader *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &GeoIP{reader: reader}, nil
}

func (g *GeoIP) Close() error {
	return g.reader.Close()
}

// ForIP returns a Platform that looks up ip.
func (g *GeoIP) ForIP(ip string) Platform {
	return PlatformFunc(func(ctx context.Context) (models.Coordinate, error) {
		if err := ctx.Err(); err != nil {
			return models.Coordinate{}, err
		}
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return models.Coordinate{}, fmt.Errorf("invalid ip %q", ip)
		}
		city, err := g.reader.City(parsed)
		if err != nil {
			return models.Coordinate{}, fmt.Errorf("geoip lookup failed: %w", err)
		}
		if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
			return models.Coordinate{}, fmt.Errorf("no location for %s", ip)
		}
		return models.Coordinate{Lat: city.Location.Latitude, Lng: city.Location.Longitude}, nil
	})
}
