package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sehatbridge/sehatauth/account"
	"github.com/sehatbridge/sehatauth/intake"
	"github.com/sehatbridge/sehatauth/internal/config"
	"github.com/sehatbridge/sehatauth/sequence"
)

// backends holds the connections the configured stores need. Fields for
// unused systems stay nil.
type backends struct {
	redis *redis.Client
	db    *gorm.DB
	mongo *mongo.Client
	mdb   *mongo.Database

	accounts account.Store
	seq      sequence.Generator
	intake   intake.Repository
}

func openBackends(ctx context.Context, s *config.Settings, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	if s.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			if s.Stores.Uses(config.BackendRedis) {
				b.Close()
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			logger.Warn().Err(err).Msg("redis unreachable, rate limiting disabled")
			_ = b.redis.Close()
			b.redis = nil
		} else {
			logger.Info().Str("addr", s.Redis.Addr).Msg("connected to redis")
		}
	}

	if s.Stores.Uses(config.BackendPostgres) {
		db, err := gorm.Open(postgres.Open(s.Postgres.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.db = db
		logger.Info().Msg("connected to postgres")
	}

	if s.Stores.Uses(config.BackendMongo) {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.Mongo.URI))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		b.mongo = client
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		b.mdb = client.Database(s.Mongo.Database)
		logger.Info().Str("database", s.Mongo.Database).Msg("connected to mongo")
	}

	switch s.Stores.Accounts {
	case config.BackendRedis:
		b.accounts = account.NewRedisStore(b.redis, s.Engine.Redis.AccountPrefix)
	case config.BackendMongo:
		b.accounts = account.NewMongoStore(b.mdb)
	case config.BackendMemory:
		logger.Warn().Msg("accounts kept in memory, not for production")
		b.accounts = account.NewMemoryStore()
	}

	switch s.Stores.Sequences {
	case config.BackendRedis:
		b.seq = sequence.NewRedisGenerator(b.redis, s.Engine.Redis.SequencePrefix)
	case config.BackendPostgres:
		b.seq = sequence.NewPostgresGenerator(b.db)
	case config.BackendMongo:
		b.seq = sequence.NewMongoGenerator(b.mdb)
	case config.BackendMemory:
		logger.Warn().Msg("sequences kept in memory, not for production")
		b.seq = sequence.NewMemoryGenerator()
	}

	switch s.Stores.Intake {
	case config.BackendPostgres:
		b.intake = intake.NewGormRepository(b.db)
	case config.BackendMongo:
		b.intake = intake.NewMongoRepository(b.mdb)
	case config.BackendMemory:
		logger.Warn().Msg("opd registrations kept in memory, not for production")
		b.intake = intake.NewMemoryRepository()
	}

	return b, nil
}

// migrate creates tables and indexes for the configured stores.
func (b *backends) migrate(ctx context.Context) error {
	var errs []error
	if gen, ok := b.seq.(*sequence.PostgresGenerator); ok {
		errs = append(errs, gen.AutoMigrate(ctx))
	}
	switch repo := b.intake.(type) {
	case *intake.GormRepository:
		errs = append(errs, repo.AutoMigrate(ctx))
	case *intake.MongoRepository:
		errs = append(errs, repo.EnsureIndexes(ctx))
	}
	if store, ok := b.accounts.(*account.MongoStore); ok {
		errs = append(errs, store.EnsureIndexes(ctx))
	}
	return errors.Join(errs...)
}

// ready pings every open connection.
func (b *backends) ready(ctx context.Context) error {
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if b.db != nil {
		sqlDB, err := b.db.DB()
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	return nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		if sqlDB, err := b.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if b.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.mongo.Disconnect(ctx)
	}
}
