package repository

import (
	"context"
	"fmt"
	"time"

	"social_chat_service/internal/chat/domain"
	errprocess "social_chat_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository conversation store
type MessageRepository interface {
	// Append validate, stamp id/time and persist a new message
	Append(ctx context.Context, msg *domain.Message) error
	// ListBetween all messages between userA and userB, ascending by created time
	ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error)
	// MarkReadBatch mark unread messages sender -> receiver as read, return affected count
	MarkReadBatch(ctx context.Context, receiverID, senderID string, at time.Time) (int64, error)
	// SummarizeByUser one row per counterpart, last message desc
	SummarizeByUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

// storeErr log the driver error and wrap it so callers can errors.Is(err, domain.ErrStoreUnavailable)
func storeErr(op string, err error) error {
	return errprocess.Wrap(fmt.Sprintf("%s: %v", op, err), domain.ErrStoreUnavailable)
}

type mongoMessageRepository struct {
	coll *mongo.Collection
}

const messageCollection = "messages"

// NewMongoMessageRepository create a mongo MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll: db.Collection(messageCollection),
	}
}

// EnsureMessageIndexes pair lookup & unread lookup
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messageCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	return err
}

func (r *mongoMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	if err := msg.PrepareForAppend(time.Now()); err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return storeErr("insert message", err)
	}
	return nil
}

func (r *mongoMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find conversation", err)
	}

	messages := []domain.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, storeErr("decode conversation", err)
	}
	return messages, nil
}

func (r *mongoMessageRepository) MarkReadBatch(ctx context.Context, receiverID, senderID string, at time.Time) (int64, error) {
	filter := bson.M{"receiver_id": receiverID, "sender_id": senderID, "is_read": false}
	update := bson.M{"$set": bson.M{"is_read": true, "read_at": at, "updated_at": at}}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, storeErr("mark read", err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepository) SummarizeByUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		// 1. 與 userID 相關的訊息
		bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "sender_id", Value: userID}},
			bson.D{{Key: "receiver_id", Value: userID}},
		}}}}},
		// 2. 新的在前, $first 才會拿到最後一則
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		// 3. 依對方分組, 計算未讀
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$sender_id", userID}}},
				"$receiver_id",
				"$sender_id",
			}}}},
			{Key: "last_message", Value: bson.D{{Key: "$first", Value: "$content"}}},
			{Key: "last_time", Value: bson.D{{Key: "$first", Value: "$created_at"}}},
			{Key: "unread_count", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$receiver_id", userID}}},
					bson.D{{Key: "$eq", Value: bson.A{"$is_read", false}}},
				}}},
				1,
				0,
			}}}}}},
		}}},
		// 4. 最近的對話在前
		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_time", Value: -1}}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate summaries", err)
	}

	results := []domain.ConversationSummary{}
	if err := cur.All(ctx, &results); err != nil {
		return nil, storeErr("decode summaries", err)
	}
	return results, nil
}
