package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-assetcache/pkg/config"
	"github.com/illmade-knight/go-assetcache/pkg/invalidation"
	"github.com/illmade-knight/go-assetcache/pkg/library"
	"github.com/illmade-knight/go-assetcache/pkg/loader"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func clientOptions(cfg *config.Config) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// newSource creates the configured byte source. closeBackend releases clients
// whose lifecycle the source does not own.
func newSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (loader.Source, func(), error) {
	noop := func() {}

	switch cfg.Source.Kind {
	case config.SourceFile:
		src, err := loader.NewLocalSource(cfg.Source.Root, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil

	case config.SourceGCS:
		client, err := storage.NewClient(ctx, clientOptions(cfg)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		src, err := loader.NewGCSSource(&loader.GCSConfig{
			BucketName:   cfg.Source.Bucket,
			ObjectPrefix: cfg.Source.ObjectPrefix,
		}, loader.NewGCSClientAdapter(client), logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return src, func() { _ = client.Close() }, nil

	case config.SourceRedis:
		src, err := loader.NewRedisSource(ctx, &cfg.Source.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil

	case config.SourceFirestore:
		client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOptions(cfg)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		src, err := loader.NewFirestoreSource(&cfg.Source.Firestore, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return src, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func newSubscriber(ctx context.Context, cfg *config.Config, lib *library.Library, logger zerolog.Logger) (*invalidation.Subscriber, func(), error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOptions(cfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	sub, err := invalidation.NewSubscriber(&invalidation.SubscriberConfig{
		SubscriptionID:         cfg.Invalidation.SubscriptionID,
		MaxOutstandingMessages: cfg.Invalidation.MaxOutstandingMessages,
		NumGoroutines:          cfg.Invalidation.NumGoroutines,
	}, client, lib, logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return sub, func() { _ = client.Close() }, nil
}
