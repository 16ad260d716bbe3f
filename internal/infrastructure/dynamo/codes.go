package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/portfolio-api/internal/domain"
)

const ownerIndex = "owner-created_at-index"

// codeAPI is the subset of the DynamoDB client the repo uses.
type codeAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CodeRepo provides typed DynamoDB operations for the verification_codes table.
//
// Consumption is a conditional UpdateItem: the condition re-checks used and
// expires_at server-side, so two concurrent verifications of the same code
// resolve to exactly one winner regardless of what either of them read first.
type CodeRepo struct {
	client    codeAPI
	tableName string
}

func NewCodeRepo(client codeAPI, tableName string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName}
}

func (r *CodeRepo) Put(ctx context.Context, c *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// InvalidateUnused marks every unused code belonging to owner as used.
// Idempotent; returns nil when no open codes exist.
func (r *CodeRepo) InvalidateUnused(ctx context.Context, owner domain.Owner) error {
	open, err := r.queryOpen(ctx, owner)
	if err != nil {
		return err
	}
	for i := range open {
		if err := r.markUsed(ctx, open[i].CodeID); err != nil {
			// A ConditionalCheckFailed here means a concurrent verify already
			// consumed the row — the invariant holds either way.
			var ccfe *types.ConditionalCheckFailedException
			if errors.As(err, &ccfe) {
				continue
			}
			return err
		}
	}
	return nil
}

// FindAndConsume finds the most recent unused, unexpired code matching owner
// and code, flips it to used, and returns it. Returns (nil, nil) when no row
// matches — the caller's generic "invalid or expired" outcome. The flip is a
// conditional write, never a read-then-write pair.
func (r *CodeRepo) FindAndConsume(ctx context.Context, owner domain.Owner, code string, now time.Time) (*domain.VerificationCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(ownerIndex),
		KeyConditionExpression: aws.String("#o = :owner"),
		// "code" is a DynamoDB reserved word, hence the aliases.
		FilterExpression: aws.String("#c = :code AND #u = :false AND expires_at > :now"),
		ExpressionAttributeNames: map[string]string{
			"#o": "owner",
			"#c": "code",
			"#u": "used",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner.Key()},
			":code":  &types.AttributeValueMemberS{Value: code},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
		ScanIndexForward: aws.Bool(false), // most recent first
	})
	if err != nil {
		return nil, err
	}

	for _, item := range out.Items {
		var c domain.VerificationCode
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, err
		}
		upd, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("code_id", c.CodeID),
			UpdateExpression:    aws.String("SET #u = :true"),
			ConditionExpression: aws.String("#u = :false AND expires_at > :now"),
			ExpressionAttributeNames: map[string]string{
				"#u": "used",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":  &types.AttributeValueMemberBOOL{Value: true},
				":false": &types.AttributeValueMemberBOOL{Value: false},
				":now":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err != nil {
			// Lost the race or the row expired since the query — try the next
			// candidate, if any.
			var ccfe *types.ConditionalCheckFailedException
			if errors.As(err, &ccfe) {
				continue
			}
			return nil, err
		}
		var consumed domain.VerificationCode
		if err := attributevalue.UnmarshalMap(upd.Attributes, &consumed); err != nil {
			return nil, err
		}
		return &consumed, nil
	}
	return nil, nil
}

// DeleteExpired permanently removes rows past their expiry. GC only — matching
// never depends on it.
func (r *CodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("expires_at <= :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
			},
			ProjectionExpression: aws.String("code_id"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return deleted, err
		}
		for _, item := range out.Items {
			id, ok := item["code_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey("code_id", id.Value),
			}); err != nil {
				return deleted, err
			}
			deleted++
		}
		if len(out.LastEvaluatedKey) == 0 {
			return deleted, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *CodeRepo) queryOpen(ctx context.Context, owner domain.Owner) ([]domain.VerificationCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(ownerIndex),
		KeyConditionExpression: aws.String("#o = :owner"),
		FilterExpression:       aws.String("#u = :false"),
		ExpressionAttributeNames: map[string]string{
			"#o": "owner",
			"#u": "used",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner.Key()},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	var codes []domain.VerificationCode
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *CodeRepo) markUsed(ctx context.Context, codeID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{"used": true})
	if err != nil {
		return err
	}
	ue.Names["#u"] = "used"
	ue.Values[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("code_id", codeID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#u = :false"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
