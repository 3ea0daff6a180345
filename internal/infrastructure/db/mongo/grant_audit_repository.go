package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

const collectionGrantEvents = "role_grant_events"

// GrantAuditRepository appends role grant changes to role_grant_events.
type GrantAuditRepository struct {
	col *mongo.Collection
}

func NewGrantAuditRepository(db *mongo.Database) *GrantAuditRepository {
	return &GrantAuditRepository{col: db.Collection(collectionGrantEvents)}
}

var _ ports.GrantAuditRepository = (*GrantAuditRepository)(nil)

// InsertEvent persists one committed grant change.
func (r *GrantAuditRepository) InsertEvent(ctx context.Context, event *domain.GrantEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc := bson.M{
		"action":      string(event.Action),
		"user_id":     event.UserID,
		"username":    event.Username,
		"role_id":     event.RoleID,
		"role_name":   string(event.RoleName),
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.PreviousRoleID != "" {
		doc["previous_role"] = bson.M{
			"id":   event.PreviousRoleID,
			"name": string(event.PreviousRoleName),
		}
	}
	if event.Actor != "" {
		doc["actor"] = event.Actor
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *GrantAuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "role_id", Value: 1}}},
	})
	return err
}
