package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"papertrail/application/ports"
	"papertrail/domain/notes"
	pkgerrors "papertrail/pkg/errors"
)

// PermissionRepository implements ports.PermissionRepository using DynamoDB.
type PermissionRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewPermissionRepository creates a DynamoDB-backed permission repository.
func NewPermissionRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) ports.PermissionRepository {
	return &PermissionRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// grantItem is the DynamoDB item structure for a sharing grant.
type grantItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	NoteID     string `dynamodbav:"NoteID"`
	UserID     string `dynamodbav:"UserID"`
	Level      string `dynamodbav:"Level"`
	GrantedAt  string `dynamodbav:"GrantedAt"`
}

func grantPK(noteID string) string { return fmt.Sprintf("NOTE#%s", noteID) }
func grantSK(userID string) string { return fmt.Sprintf("GRANT#%s", userID) }

func toGrantItem(grant *notes.Permission) grantItem {
	return grantItem{
		PK:         grantPK(grant.NoteID),
		SK:         grantSK(grant.UserID),
		GSI1PK:     fmt.Sprintf("GRANTEE#%s", grant.UserID),
		GSI1SK:     fmt.Sprintf("NOTE#%s", grant.NoteID),
		EntityType: "GRANT",
		NoteID:     grant.NoteID,
		UserID:     grant.UserID,
		Level:      string(grant.Level),
		GrantedAt:  grant.GrantedAt.Format(time.RFC3339Nano),
	}
}

func fromGrantItem(item grantItem) (*notes.Permission, error) {
	level, err := notes.ParsePermissionLevel(item.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid level on grant %s/%s: %w", item.NoteID, item.UserID, err)
	}
	grantedAt, err := time.Parse(time.RFC3339Nano, item.GrantedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid GrantedAt on grant %s/%s: %w", item.NoteID, item.UserID, err)
	}
	return &notes.Permission{
		NoteID:    item.NoteID,
		UserID:    item.UserID,
		Level:     level,
		GrantedAt: grantedAt,
	}, nil
}

// FindByGrantee returns every grant held by a user at one of the given levels,
// queried through the grantee side of GSI1.
func (r *PermissionRepository) FindByGrantee(ctx context.Context, userID string, levels []notes.PermissionLevel) ([]*notes.Permission, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("GRANTEE#%s", userID)))

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(levels) > 0 {
		values := make([]expression.OperandBuilder, 0, len(levels))
		for _, lvl := range levels {
			values = append(values, expression.Value(string(lvl)))
		}
		first := values[0]
		rest := values[1:]
		builder = builder.WithFilter(expression.Name("Level").In(first, rest...))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindGrantsByGrantee", err)
	}

	result := []*notes.Permission{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			r.logger.Error("failed to query grants by grantee", zap.String("userID", userID), zap.Error(err))
			return nil, pkgerrors.NewDatabaseError("FindGrantsByGrantee", err)
		}

		for _, raw := range out.Items {
			var item grantItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewDatabaseError("FindGrantsByGrantee", err)
			}
			grant, err := fromGrantItem(item)
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("FindGrantsByGrantee", err)
			}
			result = append(result, grant)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return result, nil
}

// FindGrant returns the grant for a note/user pair, or (nil, nil) when absent.
func (r *PermissionRepository) FindGrant(ctx context.Context, noteID, userID string) (*notes.Permission, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: grantPK(noteID)},
			"SK": &types.AttributeValueMemberS{Value: grantSK(userID)},
		},
	})
	if err != nil {
		r.logger.Error("failed to get grant",
			zap.String("noteID", noteID),
			zap.String("userID", userID),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDatabaseError("FindGrant", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item grantItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("FindGrant", err)
	}
	return fromGrantItem(item)
}

// Save persists a grant; re-sharing the same note to the same user overwrites
// the existing level.
func (r *PermissionRepository) Save(ctx context.Context, grant *notes.Permission) error {
	av, err := attributevalue.MarshalMap(toGrantItem(grant))
	if err != nil {
		return pkgerrors.NewDatabaseError("SaveGrant", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("failed to save grant",
			zap.String("noteID", grant.NoteID),
			zap.String("userID", grant.UserID),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("SaveGrant", err)
	}
	return nil
}

// Delete removes a grant. Deleting an absent grant is not an error.
func (r *PermissionRepository) Delete(ctx context.Context, noteID, userID string) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: grantPK(noteID)},
			"SK": &types.AttributeValueMemberS{Value: grantSK(userID)},
		},
	}); err != nil {
		r.logger.Error("failed to delete grant",
			zap.String("noteID", noteID),
			zap.String("userID", userID),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("DeleteGrant", err)
	}
	return nil
}
