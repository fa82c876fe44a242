package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"go.uber.org/zap"
)

type dynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoInventoryReserver keeps stock in a DynamoDB table keyed by product_id.
// A product without an item in the table is untracked.
type DynamoInventoryReserver struct {
	client dynamoAPI
	table  string
	logger *zap.Logger
}

func NewDynamoInventoryReserver(client dynamoAPI, table string, logger *zap.Logger) *DynamoInventoryReserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoInventoryReserver{client: client, table: table, logger: logger}
}

type ddbInventory struct {
	ProductID string `dynamodbav:"product_id"`
	Available int    `dynamodbav:"available"`
	Sold      int    `dynamodbav:"sold"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func (r *DynamoInventoryReserver) key(productID uuid.UUID) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"product_id": productID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

// Reserve decrements available with a conditional update. The products row
// gets the sale and the new available count through products, so both commit
// with the checkout.
func (r *DynamoInventoryReserver) Reserve(ctx context.Context, products ProductRepository, product *models.Product, quantity int) (Reservation, error) {
	res := Reservation{ProductID: product.ID, Quantity: quantity}

	key, err := r.key(product.ID)
	if err != nil {
		return res, err
	}

	expr := "SET #avail = #avail - :qty, #sold = if_not_exists(#sold, :zero) + :qty, #upd = :now"
	cond := "attribute_exists(product_id) AND #avail >= :qty"
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeNames: map[string]string{
			"#avail": "available",
			"#sold":  "sold",
			"#upd":   "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty":  &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return res, fmt.Errorf("reserve %s failed: %w", product.ID, err)
		}
		if len(ccf.Item) == 0 {
			// no inventory item: stock is not tracked for this product
			return res, products.IncrementSales(ctx, product.ID, quantity)
		}
		var current ddbInventory
		if err := attributevalue.UnmarshalMap(ccf.Item, &current); err != nil {
			return res, &StockShortageError{ProductID: product.ID, Available: -1}
		}
		return res, &StockShortageError{ProductID: product.ID, Available: current.Available}
	}

	var old ddbInventory
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return res, fmt.Errorf("unmarshal reserved item: %w", err)
	}
	before := old.Available
	after := before - quantity
	res.Before = &before
	res.After = &after
	res.External = true

	if err := products.RecordExternalSale(ctx, product.ID, quantity, after); err != nil {
		// the caller only learns about reservations that were returned
		// without error, so release this one here
		if relErr := r.Release(ctx, res); relErr != nil {
			r.logger.Error("inventory reservation leaked, reconcile manually",
				zap.String("table", r.table),
				zap.String("product_id", product.ID.String()),
				zap.Int("quantity", quantity),
				zap.Int("available_before", before),
				zap.Error(relErr),
			)
			return res, fmt.Errorf("%w (release also failed: %v)", err, relErr)
		}
		return Reservation{ProductID: product.ID, Quantity: quantity}, err
	}
	return res, nil
}

// Release adds back exactly what Reserve took.
func (r *DynamoInventoryReserver) Release(ctx context.Context, res Reservation) error {
	qty := res.Decremented()
	if qty == 0 {
		return nil
	}

	key, err := r.key(res.ProductID)
	if err != nil {
		return err
	}

	expr := "SET #avail = #avail + :qty, #sold = #sold - :qty, #upd = :now"
	cond := "attribute_exists(product_id)"
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeNames: map[string]string{
			"#avail": "available",
			"#sold":  "sold",
			"#upd":   "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("release %s failed: %w", res.ProductID, err)
	}
	return nil
}

// Seed creates the inventory item for a product. An existing item is never
// overwritten, since its count is ahead of any copy kept elsewhere; that case
// returns ErrInventoryExists.
func (r *DynamoInventoryReserver) Seed(ctx context.Context, productID uuid.UUID, available, sold int) error {
	item, err := attributevalue.MarshalMap(ddbInventory{
		ProductID: productID.String(),
		Available: available,
		Sold:      sold,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	cond := "attribute_not_exists(product_id)"
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrInventoryExists
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}
