package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizclash/internal/model"
)

// MemberRepo stores memberships keyed by (sessionId, connId).
type MemberRepo interface {
	Insert(ctx context.Context, m *model.Membership) error
	Get(ctx context.Context, sessionID, connID string) (*model.Membership, error)
	// ListBySession returns memberships sorted by join-order sequence number.
	ListBySession(ctx context.Context, sessionID string) ([]*model.Membership, error)
	Update(ctx context.Context, m *model.Membership) error
	Delete(ctx context.Context, sessionID, connID string) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

type memberRepo struct {
	collection *mongo.Collection
}

func NewMemberRepo(db *mongo.Database) MemberRepo {
	return &memberRepo{
		collection: db.Collection("members"),
	}
}

func (r *memberRepo) Insert(ctx context.Context, m *model.Membership) error {
	_, err := r.collection.InsertOne(ctx, m)
	return err
}

func (r *memberRepo) Get(ctx context.Context, sessionID, connID string) (*model.Membership, error) {
	var m model.Membership
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID, "connId": connID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Membership, error) {
	opts := options.Find().SetSort(bson.M{"seq": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*model.Membership
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepo) Update(ctx context.Context, m *model.Membership) error {
	filter := bson.M{"sessionId": m.SessionID, "connId": m.ConnID}
	_, err := r.collection.ReplaceOne(ctx, filter, m)
	return err
}

func (r *memberRepo) Delete(ctx context.Context, sessionID, connID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"sessionId": sessionID, "connId": connID})
	return err
}

func (r *memberRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"sessionId": sessionID})
	return err
}
