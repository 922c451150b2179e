package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	InvoicesCollection         = "invoices"
	BusinessProfilesCollection = "business_profiles"

	// InvoiceNumberIndex enforces global uniqueness of invoice numbers.
	InvoiceNumberIndex = "invoice_number_unique"
	// ProfileOwnerIndex enforces one business profile per owner.
	ProfileOwnerIndex = "business_profile_owner_unique"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("Connected to MongoDB", zap.String("database", dbName))
	return client, client.Database(dbName), nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client, log *zap.Logger) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	log.Info("MongoDB connection closed")
	return nil
}

// EnsureIndexes creates the indexes the services rely on. The unique index on
// invoice_number is what the create retry loop reacts to, so startup fails
// without it.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	invoiceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invoice_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(InvoiceNumberIndex),
		},
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("invoice_owner_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}},
			Options: options.Index().SetName("invoice_status_due"),
		},
	}
	if _, err := database.Collection(InvoicesCollection).Indexes().CreateMany(ctx, invoiceIndexes); err != nil {
		return fmt.Errorf("failed to create invoice indexes: %w", err)
	}

	profileIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(ProfileOwnerIndex),
	}
	if _, err := database.Collection(BusinessProfilesCollection).Indexes().CreateOne(ctx, profileIndex); err != nil {
		return fmt.Errorf("failed to create business profile indexes: %w", err)
	}
	return nil
}
