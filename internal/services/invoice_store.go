package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vedant7151/Invoice-Generator/internal/db"
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// InvoiceQuery narrows an owner's invoice list. Empty fields are ignored.
type InvoiceQuery struct {
	Status        string
	InvoiceNumber string
	Search        string
}

// IInvoiceStore is the persistence boundary for invoices. Lookups that match
// nothing return mongo.ErrNoDocuments.
type IInvoiceStore interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
	NumberTakenByOther(ctx context.Context, number string, self primitive.ObjectID) (bool, error)
	Replace(ctx context.Context, inv *models.Invoice) error
	Delete(ctx context.Context, id primitive.ObjectID, owner string) error
	List(ctx context.Context, owner string, q InvoiceQuery) ([]models.Invoice, error)
	SetEmailedAt(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkOverdue(ctx context.Context, today string, now time.Time) (int64, error)
}

type mongoInvoiceStore struct {
	coll *mongo.Collection
}

// NewInvoiceStore returns an IInvoiceStore over the invoices collection.
func NewInvoiceStore(database *mongo.Database) IInvoiceStore {
	return &mongoInvoiceStore{coll: database.Collection(db.InvoicesCollection)}
}

func (s *mongoInvoiceStore) Insert(ctx context.Context, inv *models.Invoice) error {
	inv.GenIDIfEmpty()
	if _, err := s.coll.InsertOne(ctx, inv); err != nil {
		return fmt.Errorf("insert invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

func (s *mongoInvoiceStore) findOne(ctx context.Context, filter bson.M) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.coll.FindOne(ctx, filter).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return &inv, nil
}

func (s *mongoInvoiceStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *mongoInvoiceStore) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.findOne(ctx, bson.M{"invoice_number": number})
}

// InvoiceNumberExists is a count capped at one, so no document is fetched.
func (s *mongoInvoiceStore) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	return s.exists(ctx, bson.M{"invoice_number": number})
}

func (s *mongoInvoiceStore) NumberTakenByOther(ctx context.Context, number string, self primitive.ObjectID) (bool, error) {
	return s.exists(ctx, bson.M{"invoice_number": number, "_id": bson.M{"$ne": self}})
}

func (s *mongoInvoiceStore) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count invoices: %w", err)
	}
	return n > 0, nil
}

// Replace overwrites the stored invoice, matching on id and owner.
func (s *mongoInvoiceStore) Replace(ctx context.Context, inv *models.Invoice) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": inv.ID, "owner": inv.Owner}, inv)
	if err != nil {
		return fmt.Errorf("replace invoice %s: %w", inv.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *mongoInvoiceStore) Delete(ctx context.Context, id primitive.ObjectID, owner string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return fmt.Errorf("delete invoice %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *mongoInvoiceStore) List(ctx context.Context, owner string, q InvoiceQuery) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, BuildInvoiceFilter(owner, q), opts)
	if err != nil {
		return nil, fmt.Errorf("list invoices for %s: %w", owner, err)
	}
	defer cursor.Close(ctx)

	invoices := []models.Invoice{}
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("decode invoices for %s: %w", owner, err)
	}
	return invoices, nil
}

func (s *mongoInvoiceStore) SetEmailedAt(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"emailed_at": at, "updated_at": at}})
	if err != nil {
		return fmt.Errorf("stamp emailed_at on %s: %w", id.Hex(), err)
	}
	return nil
}

// MarkOverdue flips unpaid invoices whose due date (YYYY-MM-DD) is before
// today. Invoices without a due date are left alone.
func (s *mongoInvoiceStore) MarkOverdue(ctx context.Context, today string, now time.Time) (int64, error) {
	filter := bson.M{
		"status":   models.StatusUnpaid,
		"due_date": bson.M{"$gt": "", "$lt": today},
	}
	update := bson.M{"$set": bson.M{"status": models.StatusOverdue, "updated_at": now}}
	res, err := s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	return res.ModifiedCount, nil
}

var searchFields = []string{"client.name", "client.email", "invoice_number", "from_email"}

// BuildInvoiceFilter builds the owner-scoped list filter. Search text is
// quoted so it only ever matches literally.
func BuildInvoiceFilter(owner string, q InvoiceQuery) bson.M {
	filter := bson.M{"owner": owner}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.InvoiceNumber != "" {
		filter["invoice_number"] = q.InvoiceNumber
	}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = lo.Map(searchFields, func(field string, _ int) bson.M {
			return bson.M{field: pattern}
		})
	}
	return filter
}
