package dynamodb

import (
	"context"
	"fmt"
	"sort"
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

// Single-table key layout:
//
//	note   PK=USER#{ownerID}  SK=NOTE#{noteID}   GSI1PK=NOTEID#{noteID} GSI1SK=METADATA
//	grant  PK=NOTE#{noteID}   SK=GRANT#{userID}  GSI1PK=GRANTEE#{userID} GSI1SK=NOTE#{noteID}
//
// GSI1 serves direct note lookups by ID and grantee-side grant queries.

// NoteRepository implements ports.NoteRepository using DynamoDB.
type NoteRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewNoteRepository creates a DynamoDB-backed note repository.
func NewNoteRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) ports.NoteRepository {
	return &NoteRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// noteItem is the DynamoDB item structure for a note.
type noteItem struct {
	PK         string                 `dynamodbav:"PK"`
	SK         string                 `dynamodbav:"SK"`
	GSI1PK     string                 `dynamodbav:"GSI1PK"`
	GSI1SK     string                 `dynamodbav:"GSI1SK"`
	EntityType string                 `dynamodbav:"EntityType"`
	NoteID     string                 `dynamodbav:"NoteID"`
	OwnerID    string                 `dynamodbav:"OwnerID"`
	Title      string                 `dynamodbav:"Title"`
	Content    map[string]interface{} `dynamodbav:"Content"`
	CreatedBy  string                 `dynamodbav:"CreatedBy"`
	CreatedAt  string                 `dynamodbav:"CreatedAt"`
	UpdatedAt  string                 `dynamodbav:"UpdatedAt"`
}

func notePK(ownerID string) string { return fmt.Sprintf("USER#%s", ownerID) }
func noteSK(noteID string) string  { return fmt.Sprintf("NOTE#%s", noteID) }

func toNoteItem(note *notes.Note) noteItem {
	return noteItem{
		PK:         notePK(note.OwnerID),
		SK:         noteSK(note.ID),
		GSI1PK:     fmt.Sprintf("NOTEID#%s", note.ID),
		GSI1SK:     "METADATA",
		EntityType: "NOTE",
		NoteID:     note.ID,
		OwnerID:    note.OwnerID,
		Title:      note.Title,
		Content:    note.Content,
		CreatedBy:  note.CreatedBy,
		CreatedAt:  note.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  note.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func fromNoteItem(item noteItem) (*notes.Note, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on note %s: %w", item.NoteID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on note %s: %w", item.NoteID, err)
	}
	content := item.Content
	if content == nil {
		content = map[string]interface{}{}
	}
	return &notes.Note{
		ID:        item.NoteID,
		Title:     item.Title,
		Content:   content,
		OwnerID:   item.OwnerID,
		CreatedBy: item.CreatedBy,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// FindByID retrieves a note through GSI1. Returns (nil, nil) when absent.
func (r *NoteRepository) FindByID(ctx context.Context, noteID string) (*notes.Note, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("NOTEID#%s", noteID))).
		And(expression.Key("GSI1SK").Equal(expression.Value("METADATA")))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindNoteByID", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		r.logger.Error("failed to query note by ID", zap.String("noteID", noteID), zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("FindNoteByID", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var item noteItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("FindNoteByID", err)
	}
	return fromNoteItem(item)
}

// FindByOwner retrieves all notes owned by a user.
func (r *NoteRepository) FindByOwner(ctx context.Context, ownerID string) ([]*notes.Note, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(notePK(ownerID))).
		And(expression.Key("SK").BeginsWith("NOTE#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindNotesByOwner", err)
	}

	result := []*notes.Note{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			r.logger.Error("failed to query notes by owner", zap.String("ownerID", ownerID), zap.Error(err))
			return nil, pkgerrors.NewDatabaseError("FindNotesByOwner", err)
		}

		for _, raw := range out.Items {
			var item noteItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewDatabaseError("FindNotesByOwner", err)
			}
			note, err := fromNoteItem(item)
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("FindNotesByOwner", err)
			}
			result = append(result, note)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	// The SK orders by note ID; callers expect newest first.
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	return result, nil
}

// Save persists a note, create or update.
func (r *NoteRepository) Save(ctx context.Context, note *notes.Note) error {
	av, err := attributevalue.MarshalMap(toNoteItem(note))
	if err != nil {
		return pkgerrors.NewDatabaseError("SaveNote", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("failed to save note",
			zap.String("noteID", note.ID),
			zap.String("ownerID", note.OwnerID),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("SaveNote", err)
	}
	return nil
}

// Delete removes a note and every grant attached to it.
func (r *NoteRepository) Delete(ctx context.Context, note *notes.Note) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: notePK(note.OwnerID)},
			"SK": &types.AttributeValueMemberS{Value: noteSK(note.ID)},
		},
	}); err != nil {
		r.logger.Error("failed to delete note", zap.String("noteID", note.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("DeleteNote", err)
	}

	// Cascade: drop the note's grant items so no dangling grants accumulate.
	if err := r.deleteGrants(ctx, note.ID); err != nil {
		return err
	}
	return nil
}

func (r *NoteRepository) deleteGrants(ctx context.Context, noteID string) error {
	keyCond := expression.Key("PK").Equal(expression.Value(grantPK(noteID))).
		And(expression.Key("SK").BeginsWith("GRANT#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("DeleteNoteGrants", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("DeleteNoteGrants", err)
	}

	for _, raw := range out.Items {
		pk, sk := raw["PK"], raw["SK"]
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       map[string]types.AttributeValue{"PK": pk, "SK": sk},
		}); err != nil {
			r.logger.Error("failed to delete grant during note cascade",
				zap.String("noteID", noteID),
				zap.Error(err),
			)
			return pkgerrors.NewDatabaseError("DeleteNoteGrants", err)
		}
	}
	return nil
}
