package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/javajedis/legalconnect-ai/pkg/vector"
	"github.com/javajedis/legalconnect-ai/pkg/vector/chroma"
	"github.com/javajedis/legalconnect-ai/pkg/vector/memvec"
	"github.com/javajedis/legalconnect-ai/pkg/vector/qdrant"
	"github.com/javajedis/legalconnect-ai/pkg/vector/sqlitevec"
)

type NewDriverOpts struct {
	ProviderType string
	Host         string
	Port         int
	TargetURL    string
	APIKey       string
	UseTLS       bool
	Collection   string
	DBPath       string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:       o.Host,
			Port:       o.Port,
			APIKey:     o.APIKey,
			UseTLS:     o.UseTLS,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "sqlite", "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(ctx, chroma.Config{
			URL:        o.TargetURL,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "memory":
		return memvec.NewDriver(memvec.Config{
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
