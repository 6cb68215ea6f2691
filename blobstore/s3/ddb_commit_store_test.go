package s3

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/latchkv/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB table.
type mockDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := params.Item["base_uri"].(*types.AttributeValueMemberS).Value + ":" +
		params.Item["version"].(*types.AttributeValueMemberN).Value
	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uri := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == uri {
			items = append(items, item)
		}
	}
	version := func(i int) uint64 {
		v, _ := strconv.ParseUint(items[i]["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(i) > version(j) })
	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

// racingDDBClient commits a competing version between Query and PutItem.
type racingDDBClient struct {
	*mockDDBClient
	once sync.Once
}

func (r *racingDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	r.once.Do(func() {
		competing := map[string]types.AttributeValue{}
		for k, v := range params.Item {
			competing[k] = v
		}
		competing["manifest_path"] = &types.AttributeValueMemberS{Value: "other"}
		_, _ = r.mockDDBClient.PutItem(ctx, &dynamodb.PutItemInput{Item: competing})
	})
	return r.mockDDBClient.PutItem(ctx, params, optFns...)
}

func TestDDBCommitStore(t *testing.T) {
	ctx := t.Context()
	inner := blobstore.NewMemoryStore()
	store := NewDDBCommitStore(inner, newMockDDBClient(), "commits", "s3://bucket/kv")

	_, err := store.Open(ctx, CurrentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "checkpoints/a.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, CurrentName, []byte("checkpoints/a.json")))
	require.NoError(t, store.Put(ctx, CurrentName, []byte("checkpoints/b.json")))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	data, err := blobstore.ReadAll(ctx, store, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "checkpoints/b.json", string(data))

	_, err = inner.Open(ctx, CurrentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound, "CURRENT never reaches the wrapped store")

	names, err := store.List(ctx, "checkpoints/")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints/a.json"}, names)
	assert.Error(t, store.Delete(ctx, CurrentName))
}

func TestDDBCommitStore_ConcurrentModification(t *testing.T) {
	client := &racingDDBClient{mockDDBClient: newMockDDBClient()}
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), client, "commits", "s3://bucket/kv")

	err := store.Put(t.Context(), CurrentName, []byte("mine"))
	assert.ErrorIs(t, err, ErrConcurrentModification)

	data, err := blobstore.ReadAll(t.Context(), store, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "other", string(data))
}
