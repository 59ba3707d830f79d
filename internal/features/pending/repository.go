package pending

import (
	"context"
	"fmt"
	"time"

	"records-console/internal/common/apperrors"
	"records-console/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PendingRepository interface {
	Create(ctx context.Context, action *PendingAction) error
	GetByID(ctx context.Context, id string) (*PendingAction, error)
	ListByUser(ctx context.Context, userID string, status Status) ([]PendingAction, error)
	ListPending(ctx context.Context, sessionIDs []string, limit int64) ([]PendingAction, error)
	RecordAttempt(ctx context.Context, id string, lastError string, retryable bool) (*PendingAction, error)
	Resolve(ctx context.Context, id string, actionID int64) error
	Abandon(ctx context.Context, id string, reason string) error
}

type PendingRepositoryImpl struct {
	collection *mongo.Collection
}

func NewPendingRepository(db *database.MongodbDB) PendingRepository {
	return &PendingRepositoryImpl{
		collection: db.DB.Collection("pending_actions"),
	}
}

func (r *PendingRepositoryImpl) Create(ctx context.Context, action *PendingAction) error {
	now := time.Now()
	action.ID = primitive.NewObjectID()
	action.CreatedAt = now
	action.UpdatedAt = now
	if action.Status == "" {
		action.Status = StatusPending
	}

	_, err := r.collection.InsertOne(ctx, action)
	return err
}

func (r *PendingRepositoryImpl) GetByID(ctx context.Context, id string) (*PendingAction, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
	}

	var action PendingAction
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&action)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return &action, nil
}

func (r *PendingRepositoryImpl) ListByUser(ctx context.Context, userID string, status Status) ([]PendingAction, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListPending returns the oldest retryable pending records owned by the given sessions.
func (r *PendingRepositoryImpl) ListPending(ctx context.Context, sessionIDs []string, limit int64) ([]PendingAction, error) {
	if len(sessionIDs) == 0 {
		return []PendingAction{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	filter := bson.M{
		"status":     StatusPending,
		"retryable":  true,
		"session_id": bson.M{"$in": sessionIDs},
	}
	return r.find(ctx, filter, opts)
}

func (r *PendingRepositoryImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]PendingAction, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	actions := []PendingAction{}
	if err = cursor.All(ctx, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// RecordAttempt increments the attempt counter and returns the updated record.
func (r *PendingRepositoryImpl) RecordAttempt(ctx context.Context, id string, lastError string, retryable bool) (*PendingAction, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
	}

	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"last_error": lastError, "retryable": retryable, "updated_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var action PendingAction
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID, "status": StatusPending}, update, opts).Decode(&action)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return &action, nil
}

func (r *PendingRepositoryImpl) Resolve(ctx context.Context, id string, actionID int64) error {
	now := time.Now()
	return r.transition(ctx, id, bson.M{
		"status":      StatusResolved,
		"action_id":   actionID,
		"resolved_at": now,
		"updated_at":  now,
	})
}

func (r *PendingRepositoryImpl) Abandon(ctx context.Context, id string, reason string) error {
	return r.transition(ctx, id, bson.M{
		"status":     StatusAbandoned,
		"last_error": reason,
		"updated_at": time.Now(),
	})
}

func (r *PendingRepositoryImpl) transition(ctx context.Context, id string, set bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "status": StatusPending}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, id)
	}
	return nil
}
