package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	membersCollection = "members"
	booksCollection   = "books"
	loansCollection   = "loans"
)

// PoolOptions bounds the driver's connection pool and per-operation time.
type PoolOptions struct {
	MinPoolSize            uint64
	MaxPoolSize            uint64
	MaxConnIdleTime        time.Duration
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	OperationTimeout       time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MinPoolSize:            2,
		MaxPoolSize:            20,
		MaxConnIdleTime:        60 * time.Second,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		OperationTimeout:       15 * time.Second,
	}
}

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func clientOptions(uri string, pool PoolOptions) *options.ClientOptions {
	return options.Client().
		ApplyURI(uri).
		SetMinPoolSize(pool.MinPoolSize).
		SetMaxPoolSize(pool.MaxPoolSize).
		SetMaxConnIdleTime(pool.MaxConnIdleTime).
		SetConnectTimeout(pool.ConnectTimeout).
		SetServerSelectionTimeout(pool.ServerSelectionTimeout).
		SetTimeout(pool.OperationTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetWriteConcern(writeconcern.Majority())
}

func NewMongoDB(ctx context.Context, uri, dbName string, pool PoolOptions) (*DB, error) {
	client, err := mongo.Connect(ctx, clientOptions(uri, pool))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.Info("connected to MongoDB", "db", dbName, "minPool", pool.MinPoolSize, "maxPool", pool.MaxPoolSize)
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Members() *mongo.Collection {
	return db.Database.Collection(membersCollection)
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection(booksCollection)
}

func (db *DB) Loans() *mongo.Collection {
	return db.Database.Collection(loansCollection)
}

// Ping reports whether the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
