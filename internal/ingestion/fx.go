package ingestion

import (
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/ingestion/repository"
	"github.com/smallbiznis/storesync/internal/ingestion/service"
	"github.com/smallbiznis/storesync/internal/source"
	"go.uber.org/fx"
)

var Module = fx.Module("ingestion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewWriter),
	fx.Provide(func(c *source.Client) domain.PageFetcher { return c }),
	fx.Provide(service.New),
)
