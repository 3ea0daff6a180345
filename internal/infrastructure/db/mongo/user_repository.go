package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

const (
	collectionUsers = "users"

	indexUsersUsername = "users_username_unique"
	indexUsersEmail    = "users_email_unique"
)

// UserRepository implements ports.UserRepository on the users collection.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

var _ ports.UserRepository = (*UserRepository)(nil)

type mongoUser struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	PasswordHash string               `bson:"password_hash"`
	FullName     string               `bson:"full_name"`
	PhoneNumber  string               `bson:"phone_number,omitempty"`
	Address      string               `bson:"address,omitempty"`
	Status       string               `bson:"status"`
	RoleIDs      []primitive.ObjectID `bson:"role_ids"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func (m *mongoUser) toDomain() *domain.User {
	roles := make([]string, 0, len(m.RoleIDs))
	for _, id := range m.RoleIDs {
		roles = append(roles, id.Hex())
	}
	return &domain.User{
		ID:           m.ID.Hex(),
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		PhoneNumber:  m.PhoneNumber,
		Address:      m.Address,
		Status:       domain.UserStatus(m.Status),
		RoleIDs:      roles,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	roleIDs, err := toObjectIDs(user.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	doc := mongoUser{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		FullName:     user.FullName,
		PhoneNumber:  user.PhoneNumber,
		Address:      user.Address,
		Status:       string(user.Status),
		RoleIDs:      roleIDs,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if dup := classifyDuplicate(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	doc.ID, _ = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, bson.M{"username": username})
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, bson.M{"email": email})
}

func (r *UserRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// UpdateProfile sets the contact fields of a live user and returns the
// stored result.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, changes ports.ProfileChanges) (*domain.User, error) {
	return r.updateLive(ctx, userID, profileSet(changes, time.Now().UTC()), writeGuard{})
}

func (r *UserRepository) SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	return r.updateLive(ctx, userID, bson.M{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}, writeGuard{})
}

// ReplacePasswordHash is a compare-and-set on password_hash, so a password
// verified against a stale hash is never written.
func (r *UserRepository) ReplacePasswordHash(ctx context.Context, userID, currentHash, newHash string) error {
	_, err := r.updateLive(ctx, userID, bson.M{
		"password_hash": newHash,
		"updated_at":    time.Now().UTC(),
	}, writeGuard{
		filter: bson.M{"password_hash": currentHash},
		miss:   domain.ErrIncorrectPassword,
	})
	return err
}

func (r *UserRepository) MarkDeleted(ctx context.Context, userID, protectedRoleID string) error {
	roleOID, err := primitive.ObjectIDFromHex(protectedRoleID)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", domain.ErrRoleNotFound)
	}
	_, err = r.updateLive(ctx, userID, bson.M{
		"status":     string(domain.StatusDeleted),
		"updated_at": time.Now().UTC(),
	}, writeGuard{
		filter: bson.M{"role_ids": bson.M{"$ne": roleOID}},
		miss:   domain.ErrAdminDeletion,
	})
	return err
}

// writeGuard narrows a user write beyond the live-user condition. miss is
// reported when the user is live but filter did not match.
type writeGuard struct {
	filter bson.M
	miss   error
}

// updateLive applies set to the user while it is not DELETED and guard
// holds. When nothing matches it re-reads the user to name the reason.
func (r *UserRepository) updateLive(ctx context.Context, userID string, set bson.M, guard writeGuard) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var mu mongoUser
	err = r.col.FindOneAndUpdate(ctx,
		guardedFilter(oid, guard),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mu)
	if err == nil {
		return mu.toDomain(), nil
	}
	if dup := classifyDuplicate(err); dup != nil {
		return nil, dup
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update user: %w", err)
	}

	current, err := r.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}
	return nil, missReason(current, guard)
}

// guardedFilter matches the user only while it is live and guard holds.
func guardedFilter(oid primitive.ObjectID, guard writeGuard) bson.M {
	filter := bson.M{
		"_id":    oid,
		"status": bson.M{"$ne": string(domain.StatusDeleted)},
	}
	for k, v := range guard.filter {
		filter[k] = v
	}
	return filter
}

func missReason(u *domain.User, guard writeGuard) error {
	switch {
	case u.IsDeleted():
		return domain.ErrUserDeleted
	case guard.miss != nil:
		return guard.miss
	default:
		return fmt.Errorf("update user %s: no document matched", u.ID)
	}
}

func profileSet(c ports.ProfileChanges, now time.Time) bson.M {
	set := bson.M{
		"phone_number": c.PhoneNumber,
		"address":      c.Address,
		"updated_at":   now,
	}
	if c.Email != "" {
		set["email"] = c.Email
	}
	if c.FullName != "" {
		set["full_name"] = c.FullName
	}
	return set
}

// SetRoles replaces the whole role set with one write, so a replace of one
// grant by another is never observable half done.
func (r *UserRepository) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	roles, err := toObjectIDs(roleIDs)
	if err != nil {
		return fmt.Errorf("set roles: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"role_ids":   roles,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set roles: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// CountByRole counts users holding roleID, ignoring soft-deleted accounts.
func (r *UserRepository) CountByRole(ctx context.Context, roleID string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(roleID)
	if err != nil {
		return 0, domain.ErrRoleNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{
		"role_ids": oid,
		"status":   bson.M{"$ne": string(domain.StatusDeleted)},
	})
	if err != nil {
		return 0, fmt.Errorf("count role holders: %w", err)
	}
	return n, nil
}

func (r *UserRepository) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := liveUsersFilter(f.Keyword)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(f.Page.Offset())).
		SetLimit(int64(f.Page.Size))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, total, nil
}

type grantDoc struct {
	mongoUser   `bson:",inline"`
	GrantRoleID primitive.ObjectID `bson:"grant_role_id"`
}

type grantFacet struct {
	Items []grantDoc `bson:"items"`
	Total []struct {
		N int64 `bson:"n"`
	} `bson:"total"`
}

// ListGrants unwinds each user's role set into one row per grant and pages
// through the rows with a single aggregation.
func (r *UserRepository) ListGrants(ctx context.Context, f ports.GrantFilter) ([]ports.GrantRow, int64, error) {
	pipeline, ok := grantPipeline(f)
	if !ok {
		return nil, 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("list grants: %w", err)
	}
	var facets []grantFacet
	if err := cur.All(ctx, &facets); err != nil {
		return nil, 0, fmt.Errorf("decode grants: %w", err)
	}
	if len(facets) == 0 {
		return nil, 0, nil
	}

	var total int64
	if len(facets[0].Total) > 0 {
		total = facets[0].Total[0].N
	}
	rows := make([]ports.GrantRow, 0, len(facets[0].Items))
	for i := range facets[0].Items {
		d := &facets[0].Items[i]
		rows = append(rows, ports.GrantRow{User: d.mongoUser.toDomain(), RoleID: d.GrantRoleID.Hex()})
	}
	return rows, total, nil
}

// grantPipeline builds the ListGrants aggregation. It reports false when the
// filter can match nothing.
func grantPipeline(f ports.GrantFilter) (mongo.Pipeline, bool) {
	match := liveUsersFilter(f.Keyword)
	if f.UserID != "" {
		oid, err := primitive.ObjectIDFromHex(f.UserID)
		if err != nil {
			return nil, false
		}
		match["_id"] = oid
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{"grant_role_id": "$role_ids"}}},
		{{Key: "$unwind", Value: "$grant_role_id"}},
	}

	if f.RoleIDs != nil {
		oids := make([]primitive.ObjectID, 0, len(f.RoleIDs))
		for _, id := range f.RoleIDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		if len(oids) == 0 {
			return nil, false
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"grant_role_id": bson.M{"$in": oids}}}})
	}

	page := f.Page.Normalize()
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}, {Key: "grant_role_id", Value: 1}}}},
		bson.D{{Key: "$facet", Value: bson.M{
			"items": bson.A{
				bson.M{"$skip": int64(page.Offset())},
				bson.M{"$limit": int64(page.Size)},
			},
			"total": bson.A{bson.M{"$count": "n"}},
		}}},
	)
	return pipeline, true
}

// liveUsersFilter matches non-deleted users, optionally by a case-insensitive
// substring of username, email or full name.
func liveUsersFilter(keyword string) bson.M {
	filter := bson.M{"status": bson.M{"$ne": string(domain.StatusDeleted)}}
	if kw := strings.TrimSpace(keyword); kw != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(kw), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"username": re},
			bson.M{"email": re},
			bson.M{"full_name": re},
		}
	}
	return filter
}

// classifyDuplicate maps a unique index violation to the matching domain
// error, or returns nil when err is not a duplicate key error.
func classifyDuplicate(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUsersEmail):
		return domain.ErrDuplicateEmail
	case strings.Contains(msg, indexUsersUsername):
		return domain.ErrDuplicateUsername
	default:
		return domain.ErrDuplicateUsername
	}
}

func toObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", id, err)
		}
		out = append(out, oid)
	}
	return out, nil
}

// EnsureIndexes creates the unique username and email indexes and the role
// membership index used by CountByRole.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(indexUsersUsername).SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName(indexUsersEmail).SetUnique(true)},
		{Keys: bson.D{{Key: "role_ids", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
