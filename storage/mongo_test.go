package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/BaSui01/docflow/config"
)

// fakeCollection 以 _id 为键的内存集合，只支持存储层用到的过滤条件
type fakeCollection struct {
	mu        sync.Mutex
	docs      map[string]bson.Raw
	insertErr error
	findErr   error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]bson.Raw)}
}

func filterValue(filter any, key string) string {
	for _, e := range filter.(bson.D) {
		if e.Key == key {
			return e.Value.(string)
		}
	}
	return ""
}

func (c *fakeCollection) ReplaceOne(_ context.Context, filter, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	raw, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[filterValue(filter, "_id")] = raw
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (c *fakeCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	raw, err := bson.Marshal(document)
	if err != nil {
		return nil, err
	}
	id := bson.Raw(raw).Lookup("_id").StringValue()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = raw
	return &mongo.InsertOneResult{InsertedID: id}, nil
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter, _ any, _ ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error) {
	id := filterValue(filter, "_id")
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.docs[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	var doc artifactDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc.FeedbackCount++
	updated, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	c.docs[id] = updated
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	if c.findErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.findErr, nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.docs[filterValue(filter, "_id")]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(raw, nil, nil)
}

func (c *fakeCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	want := filterValue(filter, "workflow_id")
	c.mu.Lock()
	var matched []bson.Raw
	for _, raw := range c.docs {
		if raw.Lookup("workflow_id").StringValue() == want {
			matched = append(matched, raw)
		}
	}
	c.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Lookup("submitted_at").Time().Before(matched[j].Lookup("submitted_at").Time())
	})
	docs := make([]any, len(matched))
	for i, raw := range matched {
		docs[i] = raw
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func newTestMongoStore() (*MongoStore, *fakeCollection, *fakeCollection) {
	artifacts, feedback := newFakeCollection(), newFakeCollection()
	return newMongoStore(artifacts, feedback, time.Second, nil), artifacts, feedback
}

// =============================================================================
// 🧪 MongoStore
// =============================================================================

func TestMongoStore_SaveAndGetArtifact(t *testing.T) {
	s, _, _ := newTestMongoStore()
	ctx := context.Background()

	require.NoError(t, s.SaveArtifact(ctx, completedWorkflow("wf-1")))

	a, err := s.GetArtifact(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "widgets", a.ProjectID)
	assert.Equal(t, 0.82, a.OverallScore)
	require.NotNil(t, a.Result)
	assert.Equal(t, "# widgets", a.Result.Documentation)
	require.NotNil(t, a.CompletedAt)
	assert.True(t, a.CompletedAt.Equal(*completedWorkflow("wf-1").CompletedAt))

	_, err = s.GetArtifact(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_FeedbackCountsAndOrder(t *testing.T) {
	s, _, _ := newTestMongoStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveArtifact(ctx, completedWorkflow("wf-1")))
	require.NoError(t, s.RecordFeedback(ctx, feedbackRecord("fb-2", "wf-1", 3, base.Add(time.Minute))))
	require.NoError(t, s.RecordFeedback(ctx, feedbackRecord("fb-1", "wf-1", 5, base)))

	list, err := s.ListFeedback(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "fb-1", list[0].ID)
	assert.Equal(t, 5, list[0].Scores["completeness"])

	// re-saving keeps the counter
	require.NoError(t, s.SaveArtifact(ctx, completedWorkflow("wf-1")))
	a, err := s.GetArtifact(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.FeedbackCount)
}

func TestMongoStore_Errors(t *testing.T) {
	s, artifacts, feedback := newTestMongoStore()
	ctx := context.Background()
	boom := errors.New("server selection timeout")

	feedback.insertErr = boom
	assert.ErrorIs(t, s.RecordFeedback(ctx, feedbackRecord("fb-1", "wf-1", 4, time.Now())), boom)

	artifacts.findErr = boom
	_, err := s.GetArtifact(ctx, "wf-1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.SaveArtifact(ctx, completedWorkflow("wf-1")), boom)

	feedback.findErr = boom
	_, err = s.ListFeedback(ctx, "wf-1")
	assert.ErrorIs(t, err, boom)
}

func TestMongoStore_Closed(t *testing.T) {
	s, _, _ := newTestMongoStore()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)
	_, err := s.GetArtifact(context.Background(), "wf-1")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestOpenMongo_RequiresURI(t *testing.T) {
	_, err := OpenMongo(context.Background(), config.MongoConfig{}, nil)
	assert.Error(t, err)
}
