package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.SnapshotRepository, error) {
	switch cfg.CartStore {
	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		logger.Info("cart snapshots in MongoDB", zap.String("uri", cfg.MongoURI), zap.String("db", cfg.MongoDBName))
		return repo, nil
	case "sqlite", "":
		repo, err := repository.NewSQLiteRepository(cfg.CartDBPath)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			_ = repo.Close()
			return nil, err
		}
		logger.Info("cart snapshots in SQLite", zap.String("path", cfg.CartDBPath))
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown CART_STORE %q", cfg.CartStore)
	}
}

// openPostalCache returns the lookup cache and a func releasing its connection.
func openPostalCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.PostalCache, func(), error) {
	switch cfg.PostalCache {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("postal cache in Redis", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisCache(redisClient, cache.DefaultTTL), func() { _ = redisClient.Close() }, nil
	case "memory", "":
		return cache.NewMemoryCache(cache.DefaultTTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown POSTAL_CACHE %q", cfg.PostalCache)
	}
}

func openPublisher(cfg *config.Config, logger *zap.Logger) publisher.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no Kafka brokers configured, order events are dropped")
		return publisher.NopPublisher{}
	}
	return publisher.NewKafkaPublisher(cfg.KafkaTopic, logger, cfg.KafkaBrokers...)
}

func checkoutSettings(s config.Store) checkout.Settings {
	countries := make([]string, 0, len(s.SupportedCountries))
	for code := range s.SupportedCountries {
		countries = append(countries, strings.ToUpper(code))
	}
	slices.Sort(countries)
	return checkout.Settings{
		ProjectUUID:            s.ProjectUUID,
		StoreName:              s.Name,
		Mode:                   s.Mode,
		BusinessType:           s.BusinessType,
		AllowedZipCodes:        s.AllowedZipCodes,
		SupportedCountries:     countries,
		PhoneDigits:            s.PhoneDigits,
		RequireShippingAddress: s.RequireShippingAddress,
		WhatsAppNumber:         s.FullWhatsApp(),
		PublishableKey:         s.StripePublicKey,
	}
}
